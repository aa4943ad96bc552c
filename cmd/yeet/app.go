package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Atticdm/Yeet/internal/aria2"
	"github.com/Atticdm/Yeet/internal/background"
	"github.com/Atticdm/Yeet/internal/config"
	"github.com/Atticdm/Yeet/internal/credentials"
	yhttp "github.com/Atticdm/Yeet/internal/http"
	"github.com/Atticdm/Yeet/internal/logging"
	"github.com/Atticdm/Yeet/internal/notify"
	"github.com/rs/zerolog"

	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// configFlag registers -config on fs, defaulting to $YEET_CONFIG.
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", os.Getenv("YEET_CONFIG"), "Path to a YAML config file")
}

// loadConfig reads the config file, if any, applies the environment and
// then override.
func loadConfig(path string, override config.Config) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	cfg = cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(stderr, "\n[yeet] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// app holds the components shared by the commands.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	store background.Store
	coord *background.Coordinator

	// local is set when the facility runs in this process.
	local *background.LocalFacility
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	return logging.New(cfg.LogLevel, stderr)
}

// openApp opens the record store and the background facility.
func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	storeURL, err := prepareURL(cfg.StoreURL)
	if err != nil {
		return nil, err
	}
	store, err := background.OpenStore(ctx, storeURL)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store}

	var facility background.Facility
	switch cfg.Facility {
	case config.FacilityAria2:
		client := aria2.NewClient(cfg.Aria2.RPCURL, cfg.Aria2.Secret, nil)
		facility = background.NewAria2Facility(client, cfg.SpoolDir, log)
	default:
		httpOpts := yhttp.DefaultOptions()
		httpOpts.Timeout = 0
		httpOpts.ResponseHeaderTimeout = cfg.FirstByteTimeout
		a.local, err = background.NewLocalFacility(background.LocalOptions{
			Dir:             cfg.SpoolDir,
			Client:          yhttp.NewClient(httpOpts),
			TransferTimeout: cfg.TransferTimeout,
			Logger:          log,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		facility = a.local
	}

	notifiers := notify.Multi{notify.LogNotifier{Logger: log, SharedDir: cfg.SharedDir}}
	if cfg.NotifyCommand != "" {
		notifiers = append(notifiers, notify.CommandNotifier{Command: cfg.NotifyCommand, SharedDir: cfg.SharedDir})
	}

	a.coord, err = background.New(background.Options{
		Store:     store,
		Facility:  facility,
		Notifier:  notifiers,
		SharedDir: cfg.SharedDir,
		Logger:    log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.local != nil {
		a.local.Close()
	}
	a.store.Close()
}

// openCredentials opens the cookie store.
func openCredentials(ctx context.Context, cfg config.Config) (*credentials.Store, error) {
	u, err := prepareURL(cfg.CredentialsURL)
	if err != nil {
		return nil, err
	}
	return credentials.Open(ctx, u)
}

// prepareURL creates the directory behind a file:// bucket URL, which
// fileblob expects to exist.
func prepareURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid storage URL %q: %w", raw, err)
	}
	if u.Scheme != "file" {
		return raw, nil
	}
	dir := filepath.FromSlash(u.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return raw, nil
}
