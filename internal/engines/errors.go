package engines

import (
	"fmt"

	"verity/internal/domain"
)

// EngineError wraps a failure from a single extraction engine so callers can
// attribute it when logging and excluding the engine from a vote.
type EngineError struct {
	Engine domain.EngineName
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates an EngineError.
func NewEngineError(engine domain.EngineName, err error) *EngineError {
	return &EngineError{Engine: engine, Err: err}
}
