package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for model, transcription and solver operations.
var (
	// ErrConfig indicates an inconsistent configuration detected at construction.
	ErrConfig = errors.New("dynamo: configuration error")

	// ErrDimensionMismatch indicates vectors whose sizes disagree with the robot model.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrConfig)

	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrSingular indicates a linear system that stayed singular after regularization.
	ErrSingular = errors.New("dynamo: singular system matrix")
)

// Configf returns a configuration error wrapping ErrConfig.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// CheckDim returns ErrDimensionMismatch when got != want.
func CheckDim(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrDimensionMismatch, name, got, want)
	}
	return nil
}

// StageError wraps an error with the stage it occurred at.
type StageError struct {
	Stage   int
	Time    float64
	Wrapped error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (t=%.4f): %v", e.Stage, e.Time, e.Wrapped)
}

func (e *StageError) Unwrap() error {
	return e.Wrapped
}
