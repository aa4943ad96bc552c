package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Atticdm/Yeet/internal/progress"
	"gopkg.in/yaml.v3"
)

// Facility names accepted by the facility option.
const (
	FacilityLocal = "local"
	FacilityAria2 = "aria2"
)

// Config defines configuration for the yeet CLI.
type Config struct {
	BackendBaseURL        string        `yaml:"backend_base_url"`
	MetadataPath          string        `yaml:"metadata_path"`
	AssumedThroughput     int64         `yaml:"assumed_average_throughput"` // bytes per second
	LongDownloadThreshold time.Duration `yaml:"long_download_threshold"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	FirstByteTimeout      time.Duration `yaml:"first_byte_timeout"`
	TransferTimeout       time.Duration `yaml:"transfer_timeout"`
	CacheDir              string        `yaml:"cache_dir"`
	SharedDir             string        `yaml:"shared_dir"`
	TempDir               string        `yaml:"temp_dir"`
	SpoolDir              string        `yaml:"spool_dir"` // background transfers in flight
	StoreURL              string        `yaml:"store_url"`
	CredentialsURL        string        `yaml:"credentials_url"`
	Facility              string        `yaml:"facility"`
	Aria2                 Aria2Config   `yaml:"aria2"`
	SessionID             string        `yaml:"session_id"`
	LogLevel              string        `yaml:"log_level"`
	NotifyCommand         string        `yaml:"notify_command"`
}

// Aria2Config points at an aria2 daemon used as the background facility.
type Aria2Config struct {
	RPCURL string `yaml:"rpc_url"`
	Secret string `yaml:"secret"`
}

// Default returns a Config with sensible defaults. Paths live under the
// user's cache directory.
func Default() Config {
	base := filepath.Join(userCacheDir(), "yeet")
	return Config{
		MetadataPath:          "/get-video-link",
		AssumedThroughput:     1572864, // 1.5MiB/s
		LongDownloadThreshold: 15 * time.Second,
		RequestTimeout:        30 * time.Second,
		FirstByteTimeout:      30 * time.Second,
		TransferTimeout:       30 * time.Minute,
		CacheDir:              filepath.Join(base, "videos"),
		SharedDir:             filepath.Join(base, "shared"),
		SpoolDir:              filepath.Join(base, "spool"),
		StoreURL:              "sqlite://" + filepath.ToSlash(filepath.Join(base, "records.db")),
		CredentialsURL:        "file://" + filepath.ToSlash(filepath.Join(base, "credentials")),
		Facility:              FacilityLocal,
		SessionID:             "yeet",
		LogLevel:              "info",
	}
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	BackendBaseURL        string          `yaml:"backend_base_url"`
	MetadataPath          string          `yaml:"metadata_path"`
	AssumedThroughput     string          `yaml:"assumed_average_throughput"`
	LongDownloadThreshold string          `yaml:"long_download_threshold"`
	RequestTimeout        string          `yaml:"request_timeout"`
	FirstByteTimeout      string          `yaml:"first_byte_timeout"`
	TransferTimeout       string          `yaml:"transfer_timeout"`
	CacheDir              string          `yaml:"cache_dir"`
	SharedDir             string          `yaml:"shared_dir"`
	TempDir               string          `yaml:"temp_dir"`
	SpoolDir              string          `yaml:"spool_dir"`
	StoreURL              string          `yaml:"store_url"`
	CredentialsURL        string          `yaml:"credentials_url"`
	Facility              string          `yaml:"facility"`
	Aria2                 yamlAria2Config `yaml:"aria2"`
	SessionID             string          `yaml:"session_id"`
	LogLevel              string          `yaml:"log_level"`
	NotifyCommand         string          `yaml:"notify_command"`
}

type yamlAria2Config struct {
	RPCURL string `yaml:"rpc_url"`
	Secret string `yaml:"secret"`
}

// LoadFromFile loads configuration from a YAML file on top of Default().
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	setString(&cfg.BackendBaseURL, yc.BackendBaseURL)
	setString(&cfg.MetadataPath, yc.MetadataPath)
	if yc.AssumedThroughput != "" {
		size, err := progress.ParseBytes(yc.AssumedThroughput)
		if err != nil {
			return Config{}, fmt.Errorf("parse assumed_average_throughput: %w", err)
		}
		cfg.AssumedThroughput = size
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"long_download_threshold", yc.LongDownloadThreshold, &cfg.LongDownloadThreshold},
		{"request_timeout", yc.RequestTimeout, &cfg.RequestTimeout},
		{"first_byte_timeout", yc.FirstByteTimeout, &cfg.FirstByteTimeout},
		{"transfer_timeout", yc.TransferTimeout, &cfg.TransferTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	setString(&cfg.CacheDir, yc.CacheDir)
	setString(&cfg.SharedDir, yc.SharedDir)
	setString(&cfg.TempDir, yc.TempDir)
	setString(&cfg.SpoolDir, yc.SpoolDir)
	setString(&cfg.StoreURL, yc.StoreURL)
	setString(&cfg.CredentialsURL, yc.CredentialsURL)
	setString(&cfg.Facility, yc.Facility)
	setString(&cfg.Aria2.RPCURL, yc.Aria2.RPCURL)
	setString(&cfg.Aria2.Secret, yc.Aria2.Secret)
	setString(&cfg.SessionID, yc.SessionID)
	setString(&cfg.LogLevel, yc.LogLevel)
	setString(&cfg.NotifyCommand, yc.NotifyCommand)

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the YEET_ prefix.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"YEET_BACKEND_BASE_URL": &c.BackendBaseURL,
		"YEET_METADATA_PATH":    &c.MetadataPath,
		"YEET_CACHE_DIR":        &c.CacheDir,
		"YEET_SHARED_DIR":       &c.SharedDir,
		"YEET_TEMP_DIR":         &c.TempDir,
		"YEET_SPOOL_DIR":        &c.SpoolDir,
		"YEET_STORE_URL":        &c.StoreURL,
		"YEET_CREDENTIALS_URL":  &c.CredentialsURL,
		"YEET_FACILITY":         &c.Facility,
		"YEET_ARIA2_RPC_URL":    &c.Aria2.RPCURL,
		"YEET_ARIA2_SECRET":     &c.Aria2.Secret,
		"YEET_SESSION_ID":       &c.SessionID,
		"YEET_LOG_LEVEL":        &c.LogLevel,
		"YEET_NOTIFY_COMMAND":   &c.NotifyCommand,
	}
	for name, dst := range strs {
		setString(dst, os.Getenv(name))
	}

	if v := os.Getenv("YEET_ASSUMED_AVERAGE_THROUGHPUT"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse YEET_ASSUMED_AVERAGE_THROUGHPUT: %w", err)
		}
		c.AssumedThroughput = size
	}

	durations := map[string]*time.Duration{
		"YEET_LONG_DOWNLOAD_THRESHOLD": &c.LongDownloadThreshold,
		"YEET_REQUEST_TIMEOUT":         &c.RequestTimeout,
		"YEET_FIRST_BYTE_TIMEOUT":      &c.FirstByteTimeout,
		"YEET_TRANSFER_TIMEOUT":        &c.TransferTimeout,
	}
	for name, dst := range durations {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = d
	}

	return nil
}

// Validate validates the local parts of the configuration. The backend is
// checked separately by ValidateBackend since offline commands never use it.
func (c *Config) Validate() error {
	if c.AssumedThroughput <= 0 {
		return errors.New("config: assumed_average_throughput must be positive")
	}
	if c.LongDownloadThreshold <= 0 {
		return errors.New("config: long_download_threshold must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request_timeout must be positive")
	}
	if c.FirstByteTimeout < 0 || c.TransferTimeout < 0 {
		return errors.New("config: transfer timeouts must not be negative")
	}
	if c.CacheDir == "" {
		return errors.New("config: cache_dir is required")
	}
	if c.SharedDir == "" {
		return errors.New("config: shared_dir is required")
	}
	if c.SpoolDir == "" {
		return errors.New("config: spool_dir is required")
	}
	if c.TempDir != "" && filepath.Clean(c.TempDir) == filepath.Clean(c.CacheDir) {
		return errors.New("config: temp_dir must differ from cache_dir")
	}
	if c.StoreURL == "" {
		return errors.New("config: store_url is required")
	}
	if c.CredentialsURL == "" {
		return errors.New("config: credentials_url is required")
	}
	if c.SessionID == "" {
		return errors.New("config: session_id is required")
	}
	switch c.Facility {
	case FacilityLocal:
	case FacilityAria2:
		if c.Aria2.RPCURL == "" {
			return errors.New("config: aria2.rpc_url is required for the aria2 facility")
		}
	default:
		return fmt.Errorf("config: unknown facility %q", c.Facility)
	}
	return nil
}

// ValidateBackend checks the metadata backend settings.
func (c *Config) ValidateBackend() error {
	if c.BackendBaseURL == "" {
		return errors.New("config: backend_base_url is required")
	}
	u, err := url.Parse(c.BackendBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: backend_base_url %q is not an http(s) URL", c.BackendBaseURL)
	}
	if !strings.HasPrefix(c.MetadataPath, "/") {
		return errors.New("config: metadata_path must start with /")
	}
	return nil
}

// MetadataURL joins the backend base URL and the metadata path.
func (c *Config) MetadataURL() string {
	return strings.TrimRight(c.BackendBaseURL, "/") + c.MetadataPath
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	setString(&c.BackendBaseURL, override.BackendBaseURL)
	setString(&c.MetadataPath, override.MetadataPath)
	if override.AssumedThroughput != 0 {
		c.AssumedThroughput = override.AssumedThroughput
	}
	if override.LongDownloadThreshold != 0 {
		c.LongDownloadThreshold = override.LongDownloadThreshold
	}
	if override.RequestTimeout != 0 {
		c.RequestTimeout = override.RequestTimeout
	}
	if override.FirstByteTimeout != 0 {
		c.FirstByteTimeout = override.FirstByteTimeout
	}
	if override.TransferTimeout != 0 {
		c.TransferTimeout = override.TransferTimeout
	}
	setString(&c.CacheDir, override.CacheDir)
	setString(&c.SharedDir, override.SharedDir)
	setString(&c.TempDir, override.TempDir)
	setString(&c.SpoolDir, override.SpoolDir)
	setString(&c.StoreURL, override.StoreURL)
	setString(&c.CredentialsURL, override.CredentialsURL)
	setString(&c.Facility, override.Facility)
	setString(&c.Aria2.RPCURL, override.Aria2.RPCURL)
	setString(&c.Aria2.Secret, override.Aria2.Secret)
	setString(&c.SessionID, override.SessionID)
	setString(&c.LogLevel, override.LogLevel)
	setString(&c.NotifyCommand, override.NotifyCommand)
	return c
}
