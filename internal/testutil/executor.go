package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/agentplay/core"
)

// MockExecutor is a testify mock of world.Executor.
//
//	exec := new(MockExecutor)
//	exec.On("Execute", mock.Anything, mock.Anything, `print(1)`).Return("1", nil)
type MockExecutor struct {
	mock.Mock
}

// Execute implements world.Executor.
func (m *MockExecutor) Execute(ctx context.Context, session core.SessionHandle, instruction string) (string, error) {
	args := m.Called(ctx, session, instruction)
	return args.String(0), args.Error(1)
}
