package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	yhttp "github.com/Atticdm/Yeet/internal/http"
	"github.com/Atticdm/Yeet/internal/media"
	"github.com/Atticdm/Yeet/internal/progress"
	"github.com/rs/zerolog"
)

const copyBufferSize = 32 * 1024

// Options configures the transfer engine.
type Options struct {
	// CacheDir receives finished files.
	CacheDir string

	// TempDir holds in-flight downloads. It must not be CacheDir.
	// Default: os.TempDir()
	TempDir string

	// FirstByteTimeout bounds the wait for the response headers.
	// Default: 30s
	FirstByteTimeout time.Duration

	// TransferTimeout bounds the whole transfer. Zero disables it.
	TransferTimeout time.Duration

	// Client overrides the HTTP client built from the timeouts above.
	Client *yhttp.Client

	Logger zerolog.Logger
}

// Engine streams a resolved video into the cache directory.
type Engine struct {
	opts   Options
	client *yhttp.Client
	log    zerolog.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.FirstByteTimeout == 0 {
		opts.FirstByteTimeout = 30 * time.Second
	}

	client := opts.Client
	if client == nil {
		httpOpts := yhttp.DefaultOptions()
		httpOpts.Timeout = 0
		httpOpts.ResponseHeaderTimeout = opts.FirstByteTimeout
		client = yhttp.NewClient(httpOpts)
	}

	return &Engine{opts: opts, client: client, log: opts.Logger}
}

// Transfer downloads meta.DownloadURL and returns the path of the finished
// file in the cache directory.
//
// onProgress, if set, is called synchronously from the copy loop with
// non-decreasing Received values. It is only called when the size is known,
// and the last call before a successful return reports Received == Expected.
// On failure no partial file is left behind.
func (e *Engine) Transfer(ctx context.Context, meta *media.Metadata, onProgress progress.Func) (string, error) {
	if err := meta.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", media.ErrDownloadFailed, err)
	}
	if onProgress == nil {
		onProgress = func(progress.Snapshot) {}
	}

	tctx := ctx
	if e.opts.TransferTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, e.opts.TransferTimeout)
		defer cancel()
	}

	res, err := e.fetch(ctx, tctx, meta, onProgress)
	if err != nil {
		return "", err
	}

	dest, err := e.place(res.path, meta)
	if err != nil {
		os.Remove(res.path)
		return "", err
	}

	if res.expected != progress.UnknownSize {
		target := finalTarget(meta, res.written)
		onProgress(progress.Snapshot{Received: target, Expected: target})
	}

	e.log.Info().
		Str("title", meta.Title).
		Str("file", dest).
		Int64("bytes", res.written).
		Msg("transfer complete")

	return dest, nil
}

type fetchResult struct {
	path     string
	written  int64
	expected int64
}

// fetch streams the body into a temp file.
func (e *Engine) fetch(ctx, tctx context.Context, meta *media.Metadata, onProgress progress.Func) (fetchResult, error) {
	stream, err := e.client.Get(tctx, meta.DownloadURL)
	if err != nil {
		return fetchResult{}, classify(ctx, err)
	}
	defer stream.Body.Close()

	if err := os.MkdirAll(e.opts.TempDir, 0o755); err != nil {
		return fetchResult{}, fmt.Errorf("%w: %w", media.ErrFilePreparation, err)
	}
	tmp, err := os.CreateTemp(e.opts.TempDir, "yeet-*.part")
	if err != nil {
		return fetchResult{}, fmt.Errorf("%w: %w", media.ErrFilePreparation, err)
	}

	expected := expectedSize(meta, stream.ContentLength)
	written, err := copyBody(ctx, tmp, stream, meta, expected, onProgress)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %w", media.ErrFilePreparation, cerr)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fetchResult{}, err
	}
	return fetchResult{path: tmp.Name(), written: written, expected: expected}, nil
}

func copyBody(ctx context.Context, dst *os.File, stream *yhttp.Stream, meta *media.Metadata, expected int64, onProgress progress.Func) (int64, error) {
	limit := expected
	if size := meta.Size(); size > 0 && size < limit {
		limit = size
	}

	report := func(received int64) {
		if expected == progress.UnknownSize {
			return
		}
		onProgress(progress.Snapshot{Received: min(received, limit), Expected: expected})
	}
	report(0)

	var received int64
	buf := make([]byte, copyBufferSize)
	for {
		n, rerr := stream.Body.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return received, fmt.Errorf("%w: %w", media.ErrFilePreparation, werr)
			}
			received += int64(n)
			report(received)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return received, classify(ctx, rerr)
		}
	}

	if stream.ContentLength > 0 && received < stream.ContentLength {
		return received, fmt.Errorf("%w: short body: %d of %d bytes", media.ErrDownloadFailed, received, stream.ContentLength)
	}
	return received, nil
}

// expectedSize prefers the transport length and falls back to the advertised
// file size.
func expectedSize(meta *media.Metadata, contentLength int64) int64 {
	if contentLength > 0 {
		return contentLength
	}
	if size := meta.Size(); size > 0 {
		return size
	}
	return progress.UnknownSize
}

func finalTarget(meta *media.Metadata, total int64) int64 {
	if size := meta.Size(); size > 0 {
		return size
	}
	return total
}

// place moves the temp file into the cache directory, replacing any file of
// the same name.
func (e *Engine) place(tmpPath string, meta *media.Metadata) (string, error) {
	if err := os.MkdirAll(e.opts.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", media.ErrFilePreparation, err)
	}

	dest := filepath.Join(e.opts.CacheDir, FileName(meta.Title, meta.DownloadURL))
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: remove existing: %w", media.ErrFilePreparation, err)
	}
	if err := MoveFile(tmpPath, dest); err != nil {
		return "", fmt.Errorf("%w: %w", media.ErrFilePreparation, err)
	}
	return dest, nil
}

// Cleanup removes a previously delivered file. It is best effort: an empty
// path or a missing file is ignored.
func (e *Engine) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.log.Debug().Err(err).Str("file", path).Msg("cleanup failed")
	}
}

// MoveFile renames src to dst, copying when they are on different devices.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// classify maps a request or stream error onto the media taxonomy. ctx is
// the caller's context; a timeout of the transfer itself is a failure, not a
// cancellation.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", media.ErrCancelled, ctx.Err())
	}
	return fmt.Errorf("%w: %w", media.ErrDownloadFailed, err)
}
