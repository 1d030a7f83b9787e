package engine

import (
	"fmt"
	"time"
)

// Result summarizes one sync pass.
type Result struct {
	Quick     bool
	Total     int
	Processed int
	Created   int
	Updated   int
	Deleted   int
	Moved     int
	// Recreated counts back-references whose event had been deleted remotely.
	Recreated    int
	Errors       []TaskError
	Duration     time.Duration
	ErrorLogPath string
}

// Success reports whether every task went through.
func (r *Result) Success() bool { return len(r.Errors) == 0 }

func (r *Result) Summary() string {
	if r.Success() {
		return fmt.Sprintf("Sync complete: %d tasks, %d created, %d updated, %d moved to done",
			r.Processed, r.Created, r.Updated, r.Moved)
	}
	msg := fmt.Sprintf("Sync completed with %d errors (%d of %d tasks ok)",
		len(r.Errors), r.Processed-len(r.Errors), r.Processed)
	if r.ErrorLogPath != "" {
		msg += ", see " + r.ErrorLogPath
	}
	return msg
}

// CleanupResult summarizes a bulk cleanup.
type CleanupResult struct {
	Listed       int
	Deleted      int
	NotesCleaned int
	Errors       []TaskError
	ErrorLogPath string
}

func (r *CleanupResult) Success() bool { return len(r.Errors) == 0 }

func (r *CleanupResult) Summary() string {
	msg := fmt.Sprintf("Deleted %d of %d events, cleaned %d notes", r.Deleted, r.Listed, r.NotesCleaned)
	if !r.Success() {
		msg += fmt.Sprintf(", %d errors", len(r.Errors))
		if r.ErrorLogPath != "" {
			msg += ", see " + r.ErrorLogPath
		}
	}
	return msg
}
