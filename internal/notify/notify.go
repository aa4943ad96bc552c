package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Atticdm/Yeet/internal/background"
	"github.com/rs/zerolog"
)

// Environment passed to notification commands.
const (
	EnvRecordID = "YEET_RECORD_ID"
	EnvTitle    = "YEET_TITLE"
	EnvFile     = "YEET_FILE"
)

// LogNotifier reports ready downloads to a logger.
type LogNotifier struct {
	Logger    zerolog.Logger
	SharedDir string
}

func (n LogNotifier) DownloadReady(ctx context.Context, rec *background.Record) error {
	n.Logger.Info().
		Str("record_id", rec.ID).
		Str("title", rec.Metadata.Title).
		Str("file", filepath.Join(n.SharedDir, rec.Status.RelativePath)).
		Msg("video is ready")
	return nil
}

// CommandNotifier runs a shell command for every ready download, e.g.
// notify-send. The record is described in YEET_* environment variables.
type CommandNotifier struct {
	Command   string
	SharedDir string

	// Timeout bounds the command. Default: 10s
	Timeout time.Duration
}

func (n CommandNotifier) DownloadReady(ctx context.Context, rec *background.Record) error {
	if strings.TrimSpace(n.Command) == "" {
		return errors.New("notify: empty command")
	}
	timeout := n.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", n.Command)
	cmd.Env = append(os.Environ(),
		EnvRecordID+"="+rec.ID,
		EnvTitle+"="+rec.Metadata.Title,
		EnvFile+"="+filepath.Join(n.SharedDir, rec.Status.RelativePath),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify: %s: %w: %s", n.Command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Multi notifies through every notifier and joins their errors.
type Multi []background.Notifier

func (m Multi) DownloadReady(ctx context.Context, rec *background.Record) error {
	var errs []error
	for _, n := range m {
		if err := n.DownloadReady(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
