package background

import (
	"context"
	"errors"
)

var (
	// ErrInterrupted is reported for a transfer whose worker went away
	// before finishing, e.g. because the process exited.
	ErrInterrupted = errors.New("background: transfer interrupted")

	// ErrLost is reported when the facility no longer knows the transfer.
	ErrLost = errors.New("background: transfer unknown to facility")
)

// Outcome is the result of a background transfer: either the location of
// the delivered file or an error.
type Outcome struct {
	Location string
	Err      error
}

// FinishFunc receives the outcome of a background transfer.
type FinishFunc func(ctx context.Context, id string, out Outcome) error

// Facility performs transfers outside the share action. The transfer keeps
// the record id so its completion can be matched to the record.
type Facility interface {
	Schedule(ctx context.Context, id, url string) error
}

// Pusher is implemented by facilities that report completions themselves
// while the process is alive.
type Pusher interface {
	SetFinishHandler(fn FinishFunc)
}

// Poller is implemented by facilities whose completions can be queried
// later, typically after a relaunch. done is false while the transfer is
// still running.
type Poller interface {
	Poll(ctx context.Context, id string) (out Outcome, done bool, err error)
}

// Releaser is implemented by facilities that keep per-transfer state after
// completion. Release is called once the record is final.
type Releaser interface {
	Release(ctx context.Context, id string) error
}
