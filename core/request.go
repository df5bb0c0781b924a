package core

import "strings"

// RunRequest is the inbound description of one agent run.
type RunRequest struct {
	Provider           string        `json:"modelProvider"`
	ModelID            string        `json:"modelId"`
	Credential         string        `json:"credential"`
	ActiveTools        []string      `json:"activeTools,omitempty"`
	SystemInstructions string        `json:"systemInstructions,omitempty"`
	History            []Turn        `json:"history,omitempty"`
	Session            SessionHandle `json:"sessionHandle"`
	MaxIterations      int           `json:"maxIterations,omitempty"`
}

// Validate performs the checks that must pass before any provider call.
// Provider names are validated by the adapter registry, which knows which
// providers are installed.
func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.Credential) == "" {
		return NewConfigurationError(MissingCredential, "no credential for provider %q", r.Provider)
	}

	if strings.TrimSpace(r.Provider) == "" {
		return NewConfigurationError(UnknownProvider, "model provider is required")
	}

	if err := r.Session.Validate(); err != nil {
		return err
	}

	if r.MaxIterations < 0 {
		return NewConfigurationError(InvalidRequest, "maxIterations must not be negative")
	}

	for i, t := range r.History {
		if err := t.Validate(); err != nil {
			return NewConfigurationError(InvalidRequest, "history[%d]: %v", i, err)
		}
	}

	return nil
}
