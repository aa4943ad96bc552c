package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/Atticdm/Yeet/internal/config"
)

func runOpen(args []string) int {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	fs.SetOutput(stderr)

	configPath := configFlag(fs)

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: yeet open [options] <record-id>

Print the path of a finished background download, ready to be shared.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: a record id is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer a.Close()

	return reportRecord(ctx, a, fs.Arg(0))
}
