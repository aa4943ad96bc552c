package background

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	yhttp "github.com/Atticdm/Yeet/internal/http"
	"github.com/rs/zerolog"
)

// Spool file suffixes.
const (
	partSuffix = ".part"
	dataSuffix = ".data"
	doneSuffix = ".done"
	errSuffix  = ".err"
)

// LocalOptions configures a LocalFacility.
type LocalOptions struct {
	// Dir is the spool directory. Required.
	Dir string

	// Client is used for downloads. Default: a client without overall
	// timeout.
	Client *yhttp.Client

	// TransferTimeout bounds a single transfer. Zero disables it.
	TransferTimeout time.Duration

	// StaleAfter is how long a partial file may go untouched before a
	// transfer nobody is running counts as interrupted.
	// Default: 5m
	StaleAfter time.Duration

	Logger zerolog.Logger
}

// LocalFacility downloads in goroutines of the current process into a spool
// directory. Each transfer leaves a marker when it ends, so completions that
// happened while nobody listened can be picked up by Poll:
//
//	<id>.part   download in progress
//	<id>.data   downloaded file
//	<id>.done   written after <id>.data is complete
//	<id>.err    failure message
type LocalFacility struct {
	opts   LocalOptions
	client *yhttp.Client
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	active  map[string]struct{}
	handler FinishFunc
	wg      sync.WaitGroup
}

// NewLocalFacility creates the spool directory and returns a facility.
func NewLocalFacility(opts LocalOptions) (*LocalFacility, error) {
	if opts.Dir == "" {
		return nil, errors.New("background: spool dir is required")
	}
	if opts.StaleAfter == 0 {
		opts.StaleAfter = 5 * time.Minute
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("background: create spool dir: %w", err)
	}

	client := opts.Client
	if client == nil {
		httpOpts := yhttp.DefaultOptions()
		httpOpts.Timeout = 0
		client = yhttp.NewClient(httpOpts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LocalFacility{
		opts:   opts,
		client: client,
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
		active: make(map[string]struct{}),
	}, nil
}

// SetFinishHandler sets the function called when a transfer ends.
func (f *LocalFacility) SetFinishHandler(fn FinishFunc) {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
}

// Schedule starts downloading url in the background and returns at once.
func (f *LocalFacility) Schedule(ctx context.Context, id, url string) error {
	if id == "" || strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("background: invalid transfer id %q", id)
	}
	if err := f.ctx.Err(); err != nil {
		return fmt.Errorf("background: facility closed: %w", err)
	}

	f.mu.Lock()
	if _, ok := f.active[id]; ok {
		f.mu.Unlock()
		return fmt.Errorf("%w: transfer %s", ErrExists, id)
	}
	f.active[id] = struct{}{}
	f.mu.Unlock()

	// The placeholder makes the transfer visible to Poll in other processes.
	if err := os.WriteFile(f.path(id, partSuffix), nil, 0o644); err != nil {
		f.forget(id)
		return fmt.Errorf("background: create spool file: %w", err)
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.forget(id)

		out := f.fetch(id, url)
		f.deliver(id, out)
	}()
	return nil
}

func (f *LocalFacility) fetch(id, url string) Outcome {
	ctx := f.ctx
	if f.opts.TransferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.TransferTimeout)
		defer cancel()
	}

	start := time.Now()
	n, err := f.download(ctx, id, url)
	if err != nil {
		os.Remove(f.path(id, partSuffix))
		if f.ctx.Err() != nil {
			// Closing the facility is not a verdict on the transfer.
			return Outcome{Err: ErrInterrupted}
		}
		if werr := os.WriteFile(f.path(id, errSuffix), []byte(err.Error()), 0o644); werr != nil {
			f.log.Warn().Err(werr).Str("record_id", id).Msg("could not write failure marker")
		}
		f.log.Warn().Err(err).Str("record_id", id).Msg("background transfer failed")
		return Outcome{Err: err}
	}

	if err := os.Rename(f.path(id, partSuffix), f.path(id, dataSuffix)); err != nil {
		return Outcome{Err: fmt.Errorf("background: finalize spool file: %w", err)}
	}
	if err := os.WriteFile(f.path(id, doneSuffix), nil, 0o644); err != nil {
		f.log.Warn().Err(err).Str("record_id", id).Msg("could not write completion marker")
	}

	f.log.Info().
		Str("record_id", id).
		Int64("bytes", n).
		Dur("elapsed", time.Since(start)).
		Msg("background transfer complete")
	return Outcome{Location: f.path(id, dataSuffix)}
}

func (f *LocalFacility) download(ctx context.Context, id, url string) (int64, error) {
	stream, err := f.client.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer stream.Body.Close()

	file, err := os.Create(f.path(id, partSuffix))
	if err != nil {
		return 0, fmt.Errorf("background: open spool file: %w", err)
	}

	n, err := io.Copy(file, stream.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if stream.ContentLength >= 0 && n != stream.ContentLength {
		return n, fmt.Errorf("background: short body: got %d of %d bytes", n, stream.ContentLength)
	}
	return n, nil
}

func (f *LocalFacility) deliver(id string, out Outcome) {
	if errors.Is(out.Err, ErrInterrupted) {
		return
	}

	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn == nil {
		return
	}

	if err := fn(context.Background(), id, out); err != nil && !errors.Is(err, ErrAlreadyFinished) {
		f.log.Error().Err(err).Str("record_id", id).Msg("finish handler failed")
	}
}

// Poll reports a transfer's outcome from its spool markers.
func (f *LocalFacility) Poll(ctx context.Context, id string) (Outcome, bool, error) {
	// The data file only appears once the transfer is complete.
	if exists(f.path(id, doneSuffix)) || exists(f.path(id, dataSuffix)) {
		return Outcome{Location: f.path(id, dataSuffix)}, true, nil
	}

	msg, err := os.ReadFile(f.path(id, errSuffix))
	if err == nil {
		return Outcome{Err: errors.New(string(msg))}, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Outcome{}, false, fmt.Errorf("background: read failure marker: %w", err)
	}

	f.mu.Lock()
	_, running := f.active[id]
	f.mu.Unlock()
	if running {
		return Outcome{}, false, nil
	}

	info, err := os.Stat(f.path(id, partSuffix))
	if err == nil && time.Since(info.ModTime()) < f.opts.StaleAfter {
		// Possibly still written by another process.
		return Outcome{}, false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Outcome{}, false, fmt.Errorf("background: stat spool file: %w", err)
	}
	return Outcome{Err: ErrInterrupted}, true, nil
}

// Release removes the spool files of a finished transfer.
func (f *LocalFacility) Release(ctx context.Context, id string) error {
	var errs []error
	for _, suffix := range []string{partSuffix, dataSuffix, doneSuffix, errSuffix} {
		if err := os.Remove(f.path(id, suffix)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until all running transfers have ended and their handlers
// have returned.
func (f *LocalFacility) Wait() {
	f.wg.Wait()
}

// Active returns the number of running transfers.
func (f *LocalFacility) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

// Close aborts running transfers and waits for them. Interrupted transfers
// are not reported to the handler.
func (f *LocalFacility) Close() error {
	f.cancel()
	f.wg.Wait()
	return nil
}

func (f *LocalFacility) forget(id string) {
	f.mu.Lock()
	delete(f.active, id)
	f.mu.Unlock()
}

func (f *LocalFacility) path(id, suffix string) string {
	return filepath.Join(f.opts.Dir, id+suffix)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
