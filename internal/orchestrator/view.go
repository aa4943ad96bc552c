package orchestrator

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// View is what a front end shows for a state. It is derived, never stored.
type View struct {
	Title        string
	ThumbnailURL string
	StatusLine   string

	CanCancel bool
	CanWait   bool
	CanNotify bool
	CanLogin  bool
	CanRetry  bool

	// Progress is the completed fraction while a transfer with a known size
	// is running, nil otherwise.
	Progress *float64

	IsError    bool
	IsTerminal bool
}

// Project computes the View for s. It has no side effects.
func Project(s State) View {
	v := View{
		Title:      "Preparing…",
		StatusLine: statusLine(s),
		CanCancel:  Cancellable(s),
		IsTerminal: IsTerminal(s),
	}

	if meta := metadataOf(s); meta != nil {
		v.Title = meta.Title
		v.ThumbnailURL = meta.ThumbnailURL
	}

	switch s := s.(type) {
	case AwaitingSizeDecision:
		v.CanWait = true
		v.CanNotify = true
	case Transferring:
		if s.Snapshot != nil {
			f := s.Snapshot.Fraction()
			v.Progress = &f
		}
	case LoginRequired:
		v.CanLogin = true
	case Failed:
		v.CanRetry = true
		v.IsError = true
	}
	return v
}

func statusLine(s State) string {
	switch s := s.(type) {
	case ResolvingMetadata:
		return "Requesting link…"
	case AwaitingSizeDecision:
		if size := s.Metadata.Size(); size > 0 {
			return fmt.Sprintf("Video is large (%s)", humanize.Bytes(uint64(size)))
		}
		return "Video is large"
	case Transferring:
		snap := s.Snapshot
		if snap == nil || !snap.Known() {
			return "Downloading…"
		}
		return fmt.Sprintf("Downloading %s of %s (%d%%)",
			humanize.Bytes(uint64(max(snap.Received, 0))),
			humanize.Bytes(uint64(snap.Expected)),
			int(snap.Fraction()*100),
		)
	case AwaitingNotifyHandoff:
		if s.RecordID == "" {
			return "Scheduling background download…"
		}
		return "We’ll notify you when it’s ready"
	case LoginRequired:
		if s.Message != "" {
			return s.Message
		}
		return "Login required for this content"
	case Succeeded:
		return "Ready to share"
	case Failed:
		return s.Message
	case Cancelled:
		return "Cancelled"
	}
	return "Preparing…"
}
