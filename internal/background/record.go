package background

import (
	"errors"
	"time"

	"github.com/Atticdm/Yeet/internal/media"
)

// Record states. A record starts Scheduled and moves to exactly one of the
// final states.
const (
	StateScheduled = "scheduled"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

var (
	ErrNotFound        = errors.New("background: record not found")
	ErrExists          = errors.New("background: record already exists")
	ErrAlreadyFinished = errors.New("background: record already finished")
)

// Status is the state of a record plus its payload.
type Status struct {
	State        string `json:"state"`
	RelativePath string `json:"relative_path,omitempty"` // completed only
	Message      string `json:"message,omitempty"`       // failed only
}

// Scheduled returns the initial status.
func Scheduled() Status { return Status{State: StateScheduled} }

// Completed returns a final status pointing at rel inside the shared directory.
func Completed(rel string) Status { return Status{State: StateCompleted, RelativePath: rel} }

// Failed returns a final failure status.
func Failed(msg string) Status { return Status{State: StateFailed, Message: msg} }

// Final reports whether s can no longer change.
func (s Status) Final() bool {
	return s.State == StateCompleted || s.State == StateFailed
}

// Record is a transfer handed to the background facility.
type Record struct {
	ID          string         `json:"id"`
	Metadata    media.Metadata `json:"metadata"`
	OriginalURL string         `json:"original_url"`
	Status      Status         `json:"status"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}
