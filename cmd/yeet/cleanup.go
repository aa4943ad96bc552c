package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Atticdm/Yeet/internal/config"
	"github.com/Atticdm/Yeet/internal/transfer"
)

func runCleanup(args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	fs.SetOutput(stderr)

	configPath := configFlag(fs)

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: yeet cleanup [options] <file>...

Remove delivered files once they have been shared. Only files inside the
cache and shared directories are removed; missing files are ignored.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	engine := transfer.New(transfer.Options{CacheDir: cfg.CacheDir, TempDir: cfg.TempDir, Logger: log})

	code := ExitSuccess
	for _, path := range fs.Args() {
		if !within(path, cfg.CacheDir) && !within(path, cfg.SharedDir) {
			fmt.Fprintf(stderr, "Error: %s is not a delivered file\n", path)
			code = ExitInvalidArgs
			continue
		}
		engine.Cleanup(path)
	}
	return code
}

// within reports whether path lies strictly inside dir.
func within(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
