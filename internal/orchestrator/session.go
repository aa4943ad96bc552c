package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Atticdm/Yeet/internal/media"
	"github.com/Atticdm/Yeet/internal/progress"
	"github.com/rs/zerolog"
)

var (
	// ErrNotCancellable is returned by Cancel when no operation is outstanding.
	ErrNotCancellable = errors.New("orchestrator: nothing to cancel")

	// ErrInvalidCommand is returned when a command does not apply to the
	// current state.
	ErrInvalidCommand = errors.New("orchestrator: command not allowed in current state")
)

// Resolver looks up the metadata for a page URL.
type Resolver interface {
	Resolve(ctx context.Context, pageURL string, cookies map[string]string) (*media.Metadata, error)
}

// Transferer downloads a resolved video and returns the local file path.
type Transferer interface {
	Transfer(ctx context.Context, meta *media.Metadata, onProgress progress.Func) (string, error)
}

// Scheduler hands a transfer to the background and returns its record id.
type Scheduler interface {
	Schedule(ctx context.Context, meta *media.Metadata, originalURL string) (string, error)
}

// CookieSource provides stored login cookies for a page URL.
type CookieSource interface {
	CookiesFor(ctx context.Context, pageURL string) (map[string]string, error)
}

// Options configures a Session.
type Options struct {
	Resolver   Resolver
	Transferer Transferer
	Scheduler  Scheduler

	// Cookies is optional. Cookies supplied through SupplyCredentials take
	// precedence for the rest of the session.
	Cookies CookieSource

	// AssumedThroughput in bytes per second and LongDownloadThreshold decide
	// when a background transfer is offered.
	AssumedThroughput     int64
	LongDownloadThreshold time.Duration

	Logger zerolog.Logger
}

// Session drives a single share action from a page URL to a local file.
//
// Commands never block: they validate the current state, move to the next
// one and start any network work in a goroutine. Results of an operation
// that was cancelled or superseded are dropped.
type Session struct {
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	state   State
	pageURL string
	cookies map[string]string
	gen     uint64
	cancel  context.CancelFunc
	subs    []func(State)
	changed chan struct{}

	// queue holds states not yet delivered to subscribers; draining is set
	// while some goroutine is delivering them.
	queue    []State
	draining bool

	wg sync.WaitGroup
}

// NewSession creates a Session in the Idle state.
func NewSession(opts Options) *Session {
	return &Session{
		opts:    opts,
		log:     opts.Logger,
		state:   Idle{},
		changed: make(chan struct{}),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called with every new state, in order. fn may
// run on any goroutine, never concurrently with itself.
func (s *Session) Subscribe(fn func(State)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Wait blocks until pred matches the current state or ctx is done.
func (s *Session) Wait(ctx context.Context, pred func(State) bool) (State, error) {
	for {
		s.mu.Lock()
		st, ch := s.state, s.changed
		s.mu.Unlock()

		if pred(st) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ch:
		}
	}
}

// Start begins resolving pageURL. It always moves to ResolvingMetadata; an
// invalid URL surfaces as a failure from there.
func (s *Session) Start(pageURL string) error {
	s.mu.Lock()
	if _, ok := s.state.(Idle); !ok {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: start in %s", ErrInvalidCommand, st)
	}
	s.pageURL = pageURL
	gen, ctx := s.advanceLocked(ResolvingMetadata{})

	s.log.Debug().Str("page_url", pageURL).Msg("share action started")
	s.run(func() { s.resolve(ctx, gen) })
	return nil
}

// ChooseWait starts the transfer in the foreground after a size prompt.
func (s *Session) ChooseWait() error {
	s.mu.Lock()
	st, ok := s.state.(AwaitingSizeDecision)
	if !ok {
		cur := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: wait in %s", ErrInvalidCommand, cur)
	}
	gen, ctx := s.advanceLocked(Transferring{Metadata: st.Metadata})

	s.run(func() { s.transfer(ctx, gen, st.Metadata) })
	return nil
}

// ChooseNotify hands the transfer to the background scheduler after a size
// prompt. The session cannot be cancelled from here on.
func (s *Session) ChooseNotify() error {
	s.mu.Lock()
	st, ok := s.state.(AwaitingSizeDecision)
	if !ok || s.opts.Scheduler == nil {
		cur := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: notify in %s", ErrInvalidCommand, cur)
	}
	pageURL := s.pageURL
	gen, ctx := s.advanceLocked(AwaitingNotifyHandoff{Metadata: st.Metadata})

	s.run(func() { s.schedule(ctx, gen, st.Metadata, pageURL) })
	return nil
}

// Cancel aborts the outstanding resolve or transfer, or dismisses a size
// prompt, and moves to Cancelled.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if !Cancellable(s.state) {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotCancellable, st)
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.setLocked(Cancelled{})

	s.log.Debug().Msg("share action cancelled")
	return nil
}

// Retry resolves the page URL again after a failure.
func (s *Session) Retry() error {
	s.mu.Lock()
	if _, ok := s.state.(Failed); !ok {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: retry in %s", ErrInvalidCommand, st)
	}
	gen, ctx := s.advanceLocked(ResolvingMetadata{})

	s.run(func() { s.resolve(ctx, gen) })
	return nil
}

// SupplyCredentials resolves again with the given cookies after a login
// prompt. The cookies are used for the rest of the session.
func (s *Session) SupplyCredentials(cookies map[string]string) error {
	s.mu.Lock()
	if _, ok := s.state.(LoginRequired); !ok {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: credentials in %s", ErrInvalidCommand, st)
	}
	s.cookies = cookies
	gen, ctx := s.advanceLocked(ResolvingMetadata{})

	s.run(func() { s.resolve(ctx, gen) })
	return nil
}

// Close aborts any outstanding operation without a state change and waits
// for its goroutine to exit.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Session) resolve(ctx context.Context, gen uint64) {
	s.mu.Lock()
	pageURL := s.pageURL
	s.mu.Unlock()

	meta, err := s.opts.Resolver.Resolve(ctx, pageURL, s.cookiesFor(ctx, pageURL))
	if err != nil {
		s.fail(gen, "metadata", err)
		return
	}

	s.log.Debug().
		Str("title", meta.Title).
		Int64("size", meta.Size()).
		Msg("metadata received")

	if ShouldOfferDeferral(meta.Size(), s.opts.AssumedThroughput, s.opts.LongDownloadThreshold) {
		s.transition(gen, AwaitingSizeDecision{Metadata: meta})
		return
	}

	if !s.transition(gen, Transferring{Metadata: meta}) {
		return
	}
	s.transfer(ctx, gen, meta)
}

func (s *Session) transfer(ctx context.Context, gen uint64, meta *media.Metadata) {
	path, err := s.opts.Transferer.Transfer(ctx, meta, func(snap progress.Snapshot) {
		s.transition(gen, Transferring{Metadata: meta, Snapshot: &snap})
	})
	if err != nil {
		s.fail(gen, "transfer", err)
		return
	}
	s.transition(gen, Succeeded{Metadata: meta, LocalFile: path})
}

func (s *Session) schedule(ctx context.Context, gen uint64, meta *media.Metadata, pageURL string) {
	id, err := s.opts.Scheduler.Schedule(ctx, meta, pageURL)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to schedule background download")
		s.transition(gen, Failed{Message: "Could not schedule background download", Err: err})
		return
	}
	s.log.Debug().Str("record_id", id).Msg("scheduled background download")
	s.transition(gen, AwaitingNotifyHandoff{Metadata: meta, RecordID: id})
}

func (s *Session) fail(gen uint64, stage string, err error) {
	msg := media.Message(err)
	if errors.Is(err, media.ErrAuthRequired) {
		s.transition(gen, LoginRequired{Message: msg})
		return
	}
	if s.transition(gen, Failed{Message: msg, Err: err}) {
		s.log.Error().Err(err).Str("stage", stage).Msg("share action failed")
	}
}

func (s *Session) cookiesFor(ctx context.Context, pageURL string) map[string]string {
	s.mu.Lock()
	override := s.cookies
	s.mu.Unlock()

	if override != nil || s.opts.Cookies == nil {
		return override
	}
	cookies, err := s.opts.Cookies.CookiesFor(ctx, pageURL)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not load stored cookies")
		return nil
	}
	return cookies
}

func (s *Session) run(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// advanceLocked starts a new operation: it cancels the previous one, bumps
// the generation and enters next. It must be called with s.mu held and
// releases it.
func (s *Session) advanceLocked(next State) (uint64, context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.setLocked(next)
	return gen, ctx
}

// transition enters next if gen is still the current operation.
func (s *Session) transition(gen uint64, next State) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	s.setLocked(next)
	return true
}

// setLocked stores next, wakes waiters and notifies subscribers. It must be
// called with s.mu held and releases it.
func (s *Session) setLocked(next State) {
	s.state = next
	close(s.changed)
	s.changed = make(chan struct{})

	s.queue = append(s.queue, next)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		batch := s.queue
		s.queue = nil
		subs := append([]func(State){}, s.subs...)
		s.mu.Unlock()

		for _, st := range batch {
			for _, fn := range subs {
				fn(st)
			}
		}

		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}
