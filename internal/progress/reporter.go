package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Options configures the progress reporter.
type Options struct {
	// Title is the video title shown in the header.
	Title string

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	latest     Snapshot
	seen       bool
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[yeet] Downloading: %s\n", r.opts.Title)

	go r.updateLoop()
}

// Stop stops the reporter and prints the final status. It blocks until the
// final line has been written.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// Update records the latest snapshot. It is safe to pass as a Func.
func (r *Reporter) Update(s Snapshot) {
	r.mu.Lock()
	r.latest = s
	r.seen = true
	r.mu.Unlock()
}

// Latest returns the most recent snapshot and whether one was received.
func (r *Reporter) Latest() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.seen
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	r.mu.Lock()
	s, seen := r.latest, r.seen
	now := time.Now()

	// Calculate speed
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(s.Received-r.lastBytes) / elapsed
	r.lastUpdate = now
	r.lastBytes = s.Received
	r.mu.Unlock()

	if !seen {
		fmt.Fprintf(r.opts.Output, "\r[yeet] Waiting for data...    ")
		return
	}

	if !s.Known() {
		fmt.Fprintf(r.opts.Output, "\r[yeet] Progress: %s | Speed: %s/s    ",
			FormatBytes(s.Received),
			FormatBytes(int64(speed)),
		)
		return
	}

	eta := "calculating..."
	if speed > 0 {
		remaining := float64(s.Expected - s.Received)
		eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
	}

	fmt.Fprintf(r.opts.Output, "\r[yeet] Progress: %.1f%% | %s / %s | Speed: %s/s | ETA: %s    ",
		s.Fraction()*100,
		FormatBytes(s.Received),
		FormatBytes(s.Expected),
		FormatBytes(int64(speed)),
		eta,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	r.mu.Lock()
	s := r.latest
	duration := time.Since(r.startTime)
	r.mu.Unlock()

	avgSpeed := float64(s.Received) / duration.Seconds()
	fmt.Fprintf(r.opts.Output, "\r[yeet] Progress: %.1f%% | %s | Total time: %s | Average speed: %s/s    \n",
		s.Fraction()*100,
		FormatBytes(s.Received),
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes formats bytes as a human-readable IEC string (e.g. "1.5 MiB").
func FormatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// ParseBytes parses a human-readable byte string (e.g., "1.5MiB" or "10MB").
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}
	return int64(n), nil
}
