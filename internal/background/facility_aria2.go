package background

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Atticdm/Yeet/internal/aria2"
	"github.com/rs/zerolog"
)

// Aria2Facility hands transfers to an aria2 daemon. Downloads survive the
// exit of this process; completions are collected with Poll. The download's
// GID is derived from the record id.
type Aria2Facility struct {
	client *aria2.Client
	dir    string
	log    zerolog.Logger
}

// NewAria2Facility creates a facility that downloads into dir.
func NewAria2Facility(client *aria2.Client, dir string, logger zerolog.Logger) *Aria2Facility {
	return &Aria2Facility{client: client, dir: dir, log: logger}
}

func (f *Aria2Facility) outName(id string) string { return id + ".download" }

// Schedule queues url with aria2.
func (f *Aria2Facility) Schedule(ctx context.Context, id, url string) error {
	gid, err := f.client.AddURI(ctx, url, f.dir, f.outName(id), aria2.GIDFor(id))
	if err != nil {
		return fmt.Errorf("background: aria2 add: %w", err)
	}
	f.log.Debug().Str("record_id", id).Str("gid", gid).Msg("queued with aria2")
	return nil
}

// Poll maps the aria2 status of the transfer to an outcome.
func (f *Aria2Facility) Poll(ctx context.Context, id string) (Outcome, bool, error) {
	st, err := f.client.TellStatus(ctx, aria2.GIDFor(id))
	if errors.Is(err, aria2.ErrNotFound) {
		return Outcome{Err: ErrLost}, true, nil
	}
	if err != nil {
		return Outcome{}, false, fmt.Errorf("background: aria2 status: %w", err)
	}

	switch st.Status {
	case aria2.StatusComplete:
		loc := st.Path()
		if loc == "" {
			loc = filepath.Join(f.dir, f.outName(id))
		}
		return Outcome{Location: loc}, true, nil
	case aria2.StatusError:
		return Outcome{Err: fmt.Errorf("aria2 error %s: %s", st.ErrorCode, st.ErrorMessage)}, true, nil
	case aria2.StatusRemoved:
		return Outcome{Err: errors.New("download removed from aria2")}, true, nil
	}
	return Outcome{}, false, nil
}

// Release drops the finished download from aria2's result list.
func (f *Aria2Facility) Release(ctx context.Context, id string) error {
	err := f.client.RemoveDownloadResult(ctx, aria2.GIDFor(id))
	if errors.Is(err, aria2.ErrNotFound) {
		return nil
	}
	return err
}
