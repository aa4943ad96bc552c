package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Atticdm/Yeet/internal/background"
	"github.com/Atticdm/Yeet/internal/media"
	"github.com/rs/zerolog"
)

func record() *background.Record {
	return &background.Record{
		ID:       "rec-1",
		Metadata: media.Metadata{DownloadURL: "https://cdn/x.mp4", Title: "Big clip"},
		Status:   background.Completed("rec-1.mp4"),
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: zerolog.New(&buf), SharedDir: "/shared"}

	if err := n.DownloadReady(context.Background(), record()); err != nil {
		t.Fatalf("DownloadReady: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"record_id":"rec-1"`, `"title":"Big clip"`, `"file":"/shared/rec-1.mp4"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %s", out, want)
		}
	}
}

func TestCommandNotifier(t *testing.T) {
	out := filepath.Join(t.TempDir(), "env")
	n := CommandNotifier{
		Command:   `printf '%s|%s|%s' "$YEET_RECORD_ID" "$YEET_TITLE" "$YEET_FILE" > ` + out,
		SharedDir: "/shared",
	}

	if err := n.DownloadReady(context.Background(), record()); err != nil {
		t.Fatalf("DownloadReady: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "rec-1|Big clip|/shared/rec-1.mp4" {
		t.Errorf("unexpected env %q", data)
	}
}

func TestCommandNotifierFailure(t *testing.T) {
	n := CommandNotifier{Command: "echo nope >&2; exit 3"}
	err := n.DownloadReady(context.Background(), record())
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("expected failure with output, got %v", err)
	}

	if err := (CommandNotifier{}).DownloadReady(context.Background(), record()); err == nil {
		t.Error("expected error for empty command")
	}
}

type failing struct{ err error }

func (f failing) DownloadReady(context.Context, *background.Record) error { return f.err }

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	var buf bytes.Buffer
	m := Multi{failing{boom}, LogNotifier{Logger: zerolog.New(&buf)}}

	err := m.DownloadReady(context.Background(), record())
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if buf.Len() == 0 {
		t.Error("later notifiers must still run")
	}
}
