package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/Atticdm/Yeet/internal/config"
)

func runResume(args []string) int {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	fs.SetOutput(stderr)

	configPath := configFlag(fs)
	watch := fs.Bool("watch", false, "Keep polling until no background download is pending")
	interval := fs.Duration("interval", 5*time.Second, "Poll interval for -watch")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: yeet resume [options]

Collect background downloads that finished while yeet was not running:
finished files are moved to the shared directory and reported, failed
and interrupted downloads are recorded as failed.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if *interval <= 0 {
		fmt.Fprintln(stderr, "Error: -interval must be positive")
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	ctx, cancel := signalContext()
	defer cancel()

	return resume(ctx, cfg, *watch, *interval)
}

func resume(ctx context.Context, cfg config.Config, watch bool, interval time.Duration) int {
	a, err := openApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer a.Close()

	a.coord.HandleEvents(cfg.SessionID, func() {
		a.log.Debug().Str("session", cfg.SessionID).Msg("background events handled")
	})

	n, err := a.coord.Reconcile(ctx, cfg.SessionID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	fmt.Fprintf(stderr, "[yeet] %d background download(s) finished\n", n)

	if watch {
		if err := a.coord.Watch(ctx, interval); err != nil {
			if ctx.Err() != nil {
				return ExitCancelled
			}
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitStorageError
		}
		fmt.Fprintln(stderr, "[yeet] No background downloads pending")
	}
	return ExitSuccess
}
