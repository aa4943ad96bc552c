package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"sync"

	"github.com/Atticdm/Yeet/internal/background"
	"github.com/Atticdm/Yeet/internal/config"
	"github.com/Atticdm/Yeet/internal/credentials"
	yhttp "github.com/Atticdm/Yeet/internal/http"
	"github.com/Atticdm/Yeet/internal/media"
	"github.com/Atticdm/Yeet/internal/orchestrator"
	"github.com/Atticdm/Yeet/internal/progress"
	"github.com/Atticdm/Yeet/internal/resolver"
	"github.com/Atticdm/Yeet/internal/transfer"
)

type shareOptions struct {
	wait   bool
	notify bool
	quiet  bool
}

func runShare(args []string) int {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	fs.SetOutput(stderr)

	configPath := configFlag(fs)
	backend := fs.String("backend", "", "Metadata backend base URL (overrides config)")
	wait := fs.Bool("wait", false, "Download large videos in the foreground without asking")
	notify := fs.Bool("notify", false, "Hand large videos to the background without asking")
	quiet := fs.Bool("quiet", false, "Do not print download progress")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: yeet share [options] <url>

Resolve the video behind a share link and download it into the cache
directory. The path of the file is printed on stdout.

Large videos can be handed to the background instead; yeet then reports
the file once the download is complete.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: exactly one URL is required")
		fs.Usage()
		return ExitInvalidArgs
	}
	if *wait && *notify {
		fmt.Fprintln(stderr, "Error: -wait and -notify are mutually exclusive")
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{BackendBaseURL: *backend})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	if err := cfg.ValidateBackend(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	ctx, cancel := signalContext()
	defer cancel()

	return share(ctx, cfg, fs.Arg(0), shareOptions{wait: *wait, notify: *notify, quiet: *quiet})
}

func share(ctx context.Context, cfg config.Config, pageURL string, opts shareOptions) int {
	a, err := openApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer a.Close()

	creds, err := openCredentials(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer creds.Close()

	reqOpts := yhttp.DefaultOptions()
	reqOpts.Timeout = cfg.RequestTimeout
	reqOpts.ResponseHeaderTimeout = cfg.RequestTimeout

	session := orchestrator.NewSession(orchestrator.Options{
		Resolver: resolver.New(resolver.Options{
			Endpoint: cfg.MetadataURL(),
			Client:   yhttp.NewClient(reqOpts),
			Logger:   a.log,
		}),
		Transferer: transfer.New(transfer.Options{
			CacheDir:         cfg.CacheDir,
			TempDir:          cfg.TempDir,
			FirstByteTimeout: cfg.FirstByteTimeout,
			TransferTimeout:  cfg.TransferTimeout,
			Logger:           a.log,
		}),
		Scheduler:             a.coord,
		Cookies:               creds,
		AssumedThroughput:     cfg.AssumedThroughput,
		LongDownloadThreshold: cfg.LongDownloadThreshold,
		Logger:                a.log,
	})
	defer session.Close()

	p := &printer{opts: opts}
	session.Subscribe(p.show)

	if err := session.Start(pageURL); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	in := bufio.NewReader(stdin)
	for {
		st, err := session.Wait(ctx, orchestrator.Settled)
		if err != nil {
			// Interrupted: abort whatever is in flight.
			session.Cancel()
			st, _ = session.Wait(context.Background(), orchestrator.Settled)
			if !orchestrator.IsTerminal(st) {
				p.finish()
				fmt.Fprintln(stderr, "[yeet] Cancelled")
				return ExitCancelled
			}
		}

		switch st := st.(type) {
		case orchestrator.AwaitingSizeDecision:
			p.status(orchestrator.Project(st).StatusLine)
			switch ask(in, p) {
			case choiceWait:
				session.ChooseWait()
			case choiceNotify:
				session.ChooseNotify()
			default:
				session.Cancel()
			}

		case orchestrator.LoginRequired:
			p.status(st.Message)
			cookies, ok := promptCookies(ctx, in, creds, pageURL)
			if !ok {
				p.finish()
				fmt.Fprintln(stderr, "Run 'yeet login <service>' to store cookies, then try again.")
				return ExitLoginRequired
			}
			session.SupplyCredentials(cookies)

		case orchestrator.Failed:
			p.finish()
			fmt.Fprintf(stderr, "Error: %s\n", st.Message)
			if ctx.Err() == nil && confirm(in, "Try again? [y/N]: ") {
				p.reopen()
				session.Retry()
				continue
			}
			return exitCodeFor(st.Err)

		case orchestrator.Cancelled:
			p.finish()
			fmt.Fprintln(stderr, "[yeet] Cancelled")
			return ExitCancelled

		case orchestrator.Succeeded:
			p.finish()
			fmt.Fprintf(stderr, "[yeet] %s\n", orchestrator.Project(st).StatusLine)
			fmt.Fprintln(stdout, st.LocalFile)
			return ExitSuccess

		case orchestrator.AwaitingNotifyHandoff:
			p.finish()
			fmt.Fprintf(stderr, "[yeet] %s\n", orchestrator.Project(st).StatusLine)
			return awaitBackground(ctx, a, st.RecordID)

		default:
			p.finish()
			fmt.Fprintf(stderr, "Error: unexpected state %s\n", st)
			return ExitGeneralError
		}
	}
}

// awaitBackground reports a scheduled record. A facility running in this
// process is waited for, since exiting would abort its download.
func awaitBackground(ctx context.Context, a *app, id string) int {
	fmt.Fprintf(stderr, "[yeet] Background download %s\n", id)
	if a.local == nil {
		fmt.Fprintln(stderr, "[yeet] Run 'yeet resume' to collect it once it is done")
		fmt.Fprintln(stdout, id)
		return ExitSuccess
	}

	done := make(chan struct{})
	go func() {
		a.local.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		fmt.Fprintln(stderr, "[yeet] Download interrupted; run 'yeet resume' to update its record")
		return ExitCancelled
	}

	return reportRecord(ctx, a, id)
}

// reportRecord prints the file of a completed record on stdout.
func reportRecord(ctx context.Context, a *app, id string) int {
	if loc, ok := a.coord.CompletedFileLocation(ctx, id); ok {
		fmt.Fprintln(stdout, loc)
		return ExitSuccess
	}

	rec, err := a.coord.Get(ctx, id)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, background.ErrNotFound) {
			return ExitInvalidArgs
		}
		return ExitStorageError
	}
	if rec.Status.State == background.StateFailed {
		fmt.Fprintf(stderr, "Error: background download failed: %s\n", rec.Status.Message)
		return ExitTransferFailed
	}
	fmt.Fprintf(stderr, "[yeet] %s is not ready yet\n", id)
	return ExitNotReady
}

type choice int

const (
	choiceCancel choice = iota
	choiceWait
	choiceNotify
)

// ask reads the wait-or-notify decision. An empty answer or end of input
// means wait.
func ask(in *bufio.Reader, p *printer) choice {
	switch {
	case p.opts.wait:
		return choiceWait
	case p.opts.notify:
		return choiceNotify
	}

	for {
		fmt.Fprint(stderr, "[yeet] Wait here, or download in the background and get notified? [W/n/c]: ")
		line, err := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "w", "wait":
			return choiceWait
		case "n", "notify":
			return choiceNotify
		case "c", "cancel", "q":
			return choiceCancel
		}
		if err != nil {
			return choiceWait
		}
	}
}

// confirm asks a yes/no question; anything but yes is no.
func confirm(in *bufio.Reader, question string) bool {
	fmt.Fprint(stderr, question)
	line, _ := in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// promptCookies asks for login cookies for the service of pageURL and stores
// them for later runs.
func promptCookies(ctx context.Context, in *bufio.Reader, creds *credentials.Store, pageURL string) (map[string]string, bool) {
	svc, known := credentials.ForURL(pageURL)
	if known {
		fmt.Fprintf(stderr, "[yeet] Log in to %s at %s\n", svc.DisplayName, svc.LoginURL)
	}
	fmt.Fprint(stderr, "[yeet] Paste your cookies (empty to give up): ")

	line, _ := in.ReadString('\n')
	if strings.TrimSpace(line) == "" {
		return nil, false
	}
	cookies, err := credentials.ParseCookies(line)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}

	if known {
		if missing := svc.Missing(cookies); len(missing) > 0 {
			fmt.Fprintf(stderr, "[yeet] Warning: missing %s cookies: %s\n", svc.DisplayName, strings.Join(missing, ", "))
		}
		if err := creds.Save(ctx, svc.Name, cookies); err != nil {
			fmt.Fprintf(stderr, "[yeet] Warning: could not store cookies: %v\n", err)
		}
	}
	return cookies, true
}

func exitCodeFor(err error) int {
	var backendErr *media.BackendError
	switch {
	case errors.Is(err, media.ErrInvalidInput):
		return ExitInvalidArgs
	case errors.Is(err, media.ErrAuthRequired):
		return ExitLoginRequired
	case errors.Is(err, media.ErrCancelled):
		return ExitCancelled
	case errors.Is(err, media.ErrDownloadFailed), errors.Is(err, media.ErrFilePreparation):
		return ExitTransferFailed
	case errors.Is(err, media.ErrTransport), errors.Is(err, media.ErrInvalidResponse),
		errors.Is(err, media.ErrGeoBlocked), errors.Is(err, media.ErrRateLimited),
		errors.As(err, &backendErr):
		return ExitResolveFailed
	}
	return ExitGeneralError
}

// printer writes session progress to stderr. Transfer progress goes through
// a progress.Reporter; other in-flight states print their status line.
// Settled states are printed by the command loop.
type printer struct {
	opts shareOptions

	mu       sync.Mutex
	reporter *progress.Reporter
	last     string
	done     bool
}

func (p *printer) show(st orchestrator.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}

	if t, ok := st.(orchestrator.Transferring); ok {
		if p.opts.quiet {
			return
		}
		if p.reporter == nil {
			p.reporter = progress.NewReporter(progress.Options{Title: t.Metadata.Title, Output: stderr})
			p.reporter.Start()
		}
		if t.Snapshot != nil {
			p.reporter.Update(*t.Snapshot)
		}
		return
	}

	p.stopReporterLocked()
	if !orchestrator.Settled(st) {
		p.statusLocked(orchestrator.Project(st).StatusLine)
	}
}

func (p *printer) status(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopReporterLocked()
	p.statusLocked(line)
}

func (p *printer) statusLocked(line string) {
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintf(stderr, "[yeet] %s\n", line)
}

func (p *printer) stopReporterLocked() {
	if p.reporter != nil {
		p.reporter.Stop()
		p.reporter = nil
	}
}

// finish stops progress output for good.
func (p *printer) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopReporterLocked()
	p.done = true
}

// reopen resumes progress output after a retry.
func (p *printer) reopen() {
	p.mu.Lock()
	p.done = false
	p.last = ""
	p.mu.Unlock()
}
