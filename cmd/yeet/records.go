package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Atticdm/Yeet/internal/background"
	"github.com/Atticdm/Yeet/internal/config"
	"github.com/dustin/go-humanize"
)

func runRecords(args []string) int {
	fs := flag.NewFlagSet("records", flag.ExitOnError)
	fs.SetOutput(stderr)

	configPath := configFlag(fs)
	state := fs.String("state", "", "Only show records in this state (scheduled, completed, failed)")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: yeet records [options]

List background downloads, oldest first.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	switch *state {
	case "", background.StateScheduled, background.StateCompleted, background.StateFailed:
	default:
		fmt.Fprintf(stderr, "Error: unknown state %q\n", *state)
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	ctx := context.Background()
	store, err := background.OpenStore(ctx, mustPrepare(cfg.StoreURL))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer store.Close()

	records, err := store.List(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tSIZE\tSCHEDULED\tTITLE")
	for _, rec := range records {
		if *state != "" && rec.Status.State != *state {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID,
			describeState(rec),
			describeSize(rec),
			humanize.RelTime(rec.ScheduledAt, time.Now(), "ago", "from now"),
			rec.Metadata.Title,
		)
	}
	tw.Flush()
	return ExitSuccess
}

func describeState(rec *background.Record) string {
	if rec.Status.State == background.StateFailed && rec.Status.Message != "" {
		return "failed (" + rec.Status.Message + ")"
	}
	return rec.Status.State
}

func describeSize(rec *background.Record) string {
	if rec.Metadata.FileSize == nil {
		return "-"
	}
	return humanize.Bytes(uint64(*rec.Metadata.FileSize))
}

// mustPrepare is prepareURL for read-only commands; errors surface when the
// URL is opened.
func mustPrepare(raw string) string {
	if u, err := prepareURL(raw); err == nil {
		return u
	}
	return raw
}
