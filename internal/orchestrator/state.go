package orchestrator

import (
	"github.com/Atticdm/Yeet/internal/media"
	"github.com/Atticdm/Yeet/internal/progress"
)

// State is one step of a share action. The concrete types below are the only
// implementations.
type State interface {
	isState()
	String() string
}

// Idle is the initial state.
type Idle struct{}

// ResolvingMetadata waits for the metadata backend.
type ResolvingMetadata struct{}

// AwaitingSizeDecision waits for the user to choose between waiting for a
// large download and being notified later.
type AwaitingSizeDecision struct {
	Metadata *media.Metadata
}

// Transferring streams the video. Snapshot is nil until the first progress
// report, and stays nil when the size is unknown.
type Transferring struct {
	Metadata *media.Metadata
	Snapshot *progress.Snapshot
}

// AwaitingNotifyHandoff hands the transfer to the background coordinator.
// RecordID is set once scheduling succeeded, at which point the session is
// finished.
type AwaitingNotifyHandoff struct {
	Metadata *media.Metadata
	RecordID string
}

// LoginRequired means the content needs credentials.
type LoginRequired struct {
	Message string
}

// Succeeded holds the finished local file.
type Succeeded struct {
	Metadata  *media.Metadata
	LocalFile string
}

// Failed carries a message for the user and the underlying error.
type Failed struct {
	Message string
	Err     error
}

// Cancelled is reached when the user aborts an outstanding operation.
type Cancelled struct{}

func (Idle) isState()                  {}
func (ResolvingMetadata) isState()     {}
func (AwaitingSizeDecision) isState()  {}
func (Transferring) isState()          {}
func (AwaitingNotifyHandoff) isState() {}
func (LoginRequired) isState()         {}
func (Succeeded) isState()             {}
func (Failed) isState()                {}
func (Cancelled) isState()             {}

func (Idle) String() string                  { return "idle" }
func (ResolvingMetadata) String() string     { return "resolving_metadata" }
func (AwaitingSizeDecision) String() string  { return "awaiting_size_decision" }
func (Transferring) String() string          { return "transferring" }
func (AwaitingNotifyHandoff) String() string { return "awaiting_notify_handoff" }
func (LoginRequired) String() string         { return "login_required" }
func (Succeeded) String() string             { return "succeeded" }
func (Failed) String() string                { return "failed" }
func (Cancelled) String() string             { return "cancelled" }

// IsTerminal reports whether the session is finished and may be discarded.
// Failed is terminal even though Retry can restart it.
func IsTerminal(s State) bool {
	switch s := s.(type) {
	case Succeeded, Failed, Cancelled:
		return true
	case AwaitingNotifyHandoff:
		return s.RecordID != ""
	}
	return false
}

// Settled reports whether the session is waiting on the user or finished,
// i.e. no operation is in flight.
func Settled(s State) bool {
	switch s := s.(type) {
	case AwaitingSizeDecision, LoginRequired, Idle:
		return true
	case AwaitingNotifyHandoff:
		return s.RecordID != ""
	}
	return IsTerminal(s)
}

// Cancellable reports whether Cancel is allowed in s.
func Cancellable(s State) bool {
	switch s.(type) {
	case ResolvingMetadata, AwaitingSizeDecision, Transferring:
		return true
	}
	return false
}

func metadataOf(s State) *media.Metadata {
	switch s := s.(type) {
	case AwaitingSizeDecision:
		return s.Metadata
	case Transferring:
		return s.Metadata
	case AwaitingNotifyHandoff:
		return s.Metadata
	case Succeeded:
		return s.Metadata
	}
	return nil
}
