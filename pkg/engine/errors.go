package engine

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrPassInFlight is returned when a pass is started while another runs.
var ErrPassInFlight = errors.New("a sync pass is already running")

// ConfigError is a precondition failure that stops a pass before any remote
// call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return e.Reason }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// TaskError records one task that failed during a pass.
type TaskError struct {
	Path string
	Err  error
}

func (e TaskError) Error() string { return e.Path + ": " + e.Err.Error() }

// MoveError means a completed task's remote event is gone but the note could
// not be relocated, leaving local and remote state out of step.
type MoveError struct {
	Path string
	Dest string
	Err  error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("completed task %s could not be moved to %s: %v", e.Path, e.Dest, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// writeErrorLog appends one line per failure to w.
func writeErrorLog(w io.Writer, at time.Time, kind string, errs []TaskError) error {
	if w == nil || len(errs) == 0 {
		return nil
	}
	for _, e := range errs {
		if _, err := fmt.Fprintf(w, "%s %s %s: %v\n", at.Format(time.RFC3339), kind, e.Path, e.Err); err != nil {
			return err
		}
	}
	return nil
}
