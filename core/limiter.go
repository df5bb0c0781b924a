package core

// DefaultMaxIterations bounds a run when the request does not.
const DefaultMaxIterations = 50

// IterationLimiter counts the loop iterations of one run against its bound.
// It belongs to a single run and is not safe for concurrent use.
type IterationLimiter struct {
	max   int
	count int
}

// NewIterationLimiter creates a limiter allowing max iterations. A max below
// one falls back to DefaultMaxIterations, so every run is bounded.
func NewIterationLimiter(max int) *IterationLimiter {
	if max < 1 {
		max = DefaultMaxIterations
	}
	return &IterationLimiter{max: max}
}

// Increment records the start of an iteration.
func (l *IterationLimiter) Increment() { l.count++ }

// Count returns the number of iterations started.
func (l *IterationLimiter) Count() int { return l.count }

// Max returns the bound.
func (l *IterationLimiter) Max() int { return l.max }

// Remaining returns how many iterations are left.
func (l *IterationLimiter) Remaining() int { return max(l.max-l.count, 0) }

// Exhausted reports whether no iteration is left.
func (l *IterationLimiter) Exhausted() bool { return l.count >= l.max }
