package background

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Atticdm/Yeet/internal/media"
	"github.com/Atticdm/Yeet/internal/transfer"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier tells the user that a background transfer is ready.
type Notifier interface {
	DownloadReady(ctx context.Context, rec *Record) error
}

// Options configures a Coordinator.
type Options struct {
	Store    Store
	Facility Facility

	// Notifier is optional.
	Notifier Notifier

	// SharedDir receives completed files as <id>.<ext>.
	SharedDir string

	Logger zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Coordinator schedules transfers with a facility and records their
// outcomes in the store.
type Coordinator struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	handlers map[string]func()
}

// New creates a Coordinator. If the facility pushes completions, the
// coordinator registers itself as their handler.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, errors.New("background: store is required")
	}
	if opts.Facility == nil {
		return nil, errors.New("background: facility is required")
	}
	if opts.SharedDir == "" {
		return nil, errors.New("background: shared dir is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Coordinator{
		opts:     opts,
		log:      opts.Logger,
		handlers: make(map[string]func()),
	}
	if p, ok := opts.Facility.(Pusher); ok {
		p.SetFinishHandler(c.OnTransferFinished)
	}
	return c, nil
}

// Schedule creates a record for meta and hands its transfer to the
// facility. If the facility refuses, the record is marked failed and the
// error returned.
func (c *Coordinator) Schedule(ctx context.Context, meta *media.Metadata, originalURL string) (string, error) {
	if err := meta.Validate(); err != nil {
		return "", fmt.Errorf("background: %w", err)
	}

	rec := &Record{
		ID:          uuid.NewString(),
		Metadata:    *meta,
		OriginalURL: originalURL,
		Status:      Scheduled(),
		ScheduledAt: c.opts.Now().UTC(),
	}
	if err := c.opts.Store.Create(ctx, rec); err != nil {
		return "", err
	}

	if err := c.opts.Facility.Schedule(ctx, rec.ID, meta.DownloadURL); err != nil {
		if _, ferr := c.finish(ctx, rec.ID, Failed(err.Error())); ferr != nil {
			c.log.Warn().Err(ferr).Str("record_id", rec.ID).Msg("could not record scheduling failure")
		}
		return "", fmt.Errorf("background: schedule %s: %w", rec.ID, err)
	}

	c.log.Info().
		Str("record_id", rec.ID).
		Str("title", meta.Title).
		Msg("background transfer scheduled")
	return rec.ID, nil
}

// OnTransferFinished records the outcome of the transfer for record id. A
// delivered file is moved into the shared directory and the user notified.
// Records that are already final are left as they are and ErrAlreadyFinished
// is returned.
func (c *Coordinator) OnTransferFinished(ctx context.Context, id string, out Outcome) error {
	rec, err := c.opts.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status.Final() {
		return fmt.Errorf("%w: %s", ErrAlreadyFinished, id)
	}

	if out.Err != nil {
		c.log.Warn().Err(out.Err).Str("record_id", id).Msg("background transfer failed")
		_, err := c.finish(ctx, id, Failed(out.Err.Error()))
		return err
	}

	rel := id + "." + transfer.InferExtension(rec.Metadata.DownloadURL)
	if err := c.place(out.Location, rel); err != nil {
		c.log.Error().Err(err).Str("record_id", id).Msg("could not move completed file")
		_, err := c.finish(ctx, id, Failed(err.Error()))
		return err
	}

	rec, err = c.finish(ctx, id, Completed(rel))
	if err != nil {
		return err
	}
	c.log.Info().Str("record_id", id).Str("file", rel).Msg("background transfer completed")

	if c.opts.Notifier != nil {
		if err := c.opts.Notifier.DownloadReady(ctx, rec); err != nil {
			c.log.Warn().Err(err).Str("record_id", id).Msg("notification failed")
		}
	}
	return nil
}

func (c *Coordinator) place(src, rel string) error {
	if src == "" {
		return errors.New("background: facility reported no file")
	}
	dst := filepath.Join(c.opts.SharedDir, rel)
	if !exists(src) && exists(dst) {
		// Moved by an earlier attempt whose status write failed.
		return nil
	}
	if err := os.MkdirAll(c.opts.SharedDir, 0o755); err != nil {
		return fmt.Errorf("background: create shared dir: %w", err)
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("background: replace %s: %w", rel, err)
	}
	if err := transfer.MoveFile(src, dst); err != nil {
		return fmt.Errorf("background: move file: %w", err)
	}
	return nil
}

// finish records the final status. Facility state is released only once the
// status is stored.
func (c *Coordinator) finish(ctx context.Context, id string, status Status) (*Record, error) {
	rec, err := c.opts.Store.Finish(ctx, id, status, c.opts.Now())
	if err == nil || errors.Is(err, ErrAlreadyFinished) {
		c.release(ctx, id)
	}
	return rec, err
}

func (c *Coordinator) release(ctx context.Context, id string) {
	r, ok := c.opts.Facility.(Releaser)
	if !ok {
		return
	}
	if err := r.Release(ctx, id); err != nil {
		c.log.Debug().Err(err).Str("record_id", id).Msg("release failed")
	}
}

// CompletedFileLocation returns the path of the delivered file for a
// completed record.
func (c *Coordinator) CompletedFileLocation(ctx context.Context, id string) (string, bool) {
	rec, err := c.opts.Store.Get(ctx, id)
	if err != nil || rec.Status.State != StateCompleted {
		return "", false
	}
	return filepath.Join(c.opts.SharedDir, rec.Status.RelativePath), true
}

// Get returns the record with id.
func (c *Coordinator) Get(ctx context.Context, id string) (*Record, error) {
	return c.opts.Store.Get(ctx, id)
}

// Records returns all records.
func (c *Coordinator) Records(ctx context.Context) ([]*Record, error) {
	return c.opts.Store.List(ctx)
}

// HandleEvents registers fn to run once the pending events of sessionID have
// been processed. A later registration replaces an earlier one.
func (c *Coordinator) HandleEvents(sessionID string, fn func()) {
	c.mu.Lock()
	c.handlers[sessionID] = fn
	c.mu.Unlock()
}

// FinishEvents runs and clears the handler of sessionID. It reports whether
// a handler was registered.
func (c *Coordinator) FinishEvents(sessionID string) bool {
	c.mu.Lock()
	fn, ok := c.handlers[sessionID]
	delete(c.handlers, sessionID)
	c.mu.Unlock()

	if ok && fn != nil {
		fn()
	}
	return ok
}

// Reconcile collects outcomes of transfers that ended while no process was
// listening, then finishes the events of sessionID. It returns the number of
// records that became final.
func (c *Coordinator) Reconcile(ctx context.Context, sessionID string) (int, error) {
	defer c.FinishEvents(sessionID)

	finished, _, err := c.collect(ctx)
	return finished, err
}

// Watch polls the facility every interval until no record is scheduled or
// ctx is done.
func (c *Coordinator) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, pending, err := c.collect(ctx)
		if err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// collect polls every scheduled record once.
func (c *Coordinator) collect(ctx context.Context) (finished, pending int, err error) {
	records, err := c.opts.Store.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	poller, canPoll := c.opts.Facility.(Poller)

	for _, rec := range records {
		if rec.Status.Final() {
			continue
		}
		if !canPoll {
			pending++
			continue
		}

		out, done, err := poller.Poll(ctx, rec.ID)
		if err != nil {
			c.log.Warn().Err(err).Str("record_id", rec.ID).Msg("poll failed")
			pending++
			continue
		}
		if !done {
			pending++
			continue
		}

		err = c.OnTransferFinished(ctx, rec.ID, out)
		switch {
		case errors.Is(err, ErrAlreadyFinished):
		case err != nil:
			c.log.Error().Err(err).Str("record_id", rec.ID).Msg("could not record outcome")
		default:
			finished++
		}
	}
	return finished, pending, nil
}
