package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.MetadataPath != "/get-video-link" {
		t.Errorf("expected default metadata path /get-video-link, got %s", cfg.MetadataPath)
	}
	if cfg.AssumedThroughput != 1572864 {
		t.Errorf("expected default throughput 1.5MiB, got %d", cfg.AssumedThroughput)
	}
	if cfg.LongDownloadThreshold != 15*time.Second {
		t.Errorf("expected default threshold 15s, got %v", cfg.LongDownloadThreshold)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected default request timeout 30s, got %v", cfg.RequestTimeout)
	}
	if cfg.TransferTimeout != 30*time.Minute {
		t.Errorf("expected default transfer timeout 30m, got %v", cfg.TransferTimeout)
	}
	if cfg.Facility != FacilityLocal {
		t.Errorf("expected default facility local, got %s", cfg.Facility)
	}
	if !strings.HasPrefix(cfg.StoreURL, "sqlite://") {
		t.Errorf("expected sqlite store by default, got %s", cfg.StoreURL)
	}
	if cfg.CacheDir == cfg.SharedDir {
		t.Error("cache and shared dirs must differ")
	}

	// Default is valid apart from the backend.
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if err := cfg.ValidateBackend(); err == nil {
		t.Error("expected backend validation to fail without a base URL")
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
backend_base_url: https://api.example.com
assumed_average_throughput: 2MiB
long_download_threshold: 20s
transfer_timeout: 1h
cache_dir: /tmp/yeet-cache
spool_dir: /tmp/yeet-spool
facility: aria2
aria2:
  rpc_url: http://localhost:6800/jsonrpc
  secret: s3cret
notify_command: notify-send
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.BackendBaseURL != "https://api.example.com" {
		t.Errorf("unexpected backend %s", cfg.BackendBaseURL)
	}
	if cfg.AssumedThroughput != 2*1024*1024 {
		t.Errorf("expected throughput 2MiB, got %d", cfg.AssumedThroughput)
	}
	if cfg.LongDownloadThreshold != 20*time.Second {
		t.Errorf("expected threshold 20s, got %v", cfg.LongDownloadThreshold)
	}
	if cfg.TransferTimeout != time.Hour {
		t.Errorf("expected transfer timeout 1h, got %v", cfg.TransferTimeout)
	}
	if cfg.CacheDir != "/tmp/yeet-cache" {
		t.Errorf("unexpected cache dir %s", cfg.CacheDir)
	}
	if cfg.SpoolDir != "/tmp/yeet-spool" {
		t.Errorf("unexpected spool dir %s", cfg.SpoolDir)
	}
	if cfg.Facility != FacilityAria2 || cfg.Aria2.RPCURL != "http://localhost:6800/jsonrpc" || cfg.Aria2.Secret != "s3cret" {
		t.Errorf("unexpected aria2 settings %+v / %s", cfg.Aria2, cfg.Facility)
	}
	if cfg.NotifyCommand != "notify-send" {
		t.Errorf("unexpected notify command %s", cfg.NotifyCommand)
	}

	// Untouched fields keep defaults.
	if cfg.MetadataPath != "/get-video-link" {
		t.Errorf("expected default metadata path, got %s", cfg.MetadataPath)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected default request timeout, got %v", cfg.RequestTimeout)
	}
}

func TestLoadFromYAMLBadValues(t *testing.T) {
	tests := []string{
		"assumed_average_throughput: fast\n",
		"long_download_threshold: soon\n",
		"request_timeout: 5 parsecs\n",
	}

	for _, content := range tests {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("write config file: %v", err)
		}
		if _, err := LoadFromFile(configPath); err == nil {
			t.Errorf("expected error for %q", content)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("YEET_BACKEND_BASE_URL", "http://localhost:8080")
	t.Setenv("YEET_ASSUMED_AVERAGE_THROUGHPUT", "1MB")
	t.Setenv("YEET_LONG_DOWNLOAD_THRESHOLD", "5s")
	t.Setenv("YEET_FIRST_BYTE_TIMEOUT", "10s")
	t.Setenv("YEET_STORE_URL", "mem://")
	t.Setenv("YEET_SESSION_ID", "test-session")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.BackendBaseURL != "http://localhost:8080" {
		t.Errorf("unexpected backend %s", cfg.BackendBaseURL)
	}
	if cfg.AssumedThroughput != 1000*1000 {
		t.Errorf("expected throughput 1MB, got %d", cfg.AssumedThroughput)
	}
	if cfg.LongDownloadThreshold != 5*time.Second {
		t.Errorf("expected threshold 5s, got %v", cfg.LongDownloadThreshold)
	}
	if cfg.FirstByteTimeout != 10*time.Second {
		t.Errorf("expected first byte timeout 10s, got %v", cfg.FirstByteTimeout)
	}
	if cfg.StoreURL != "mem://" {
		t.Errorf("unexpected store url %s", cfg.StoreURL)
	}
	if cfg.SessionID != "test-session" {
		t.Errorf("unexpected session id %s", cfg.SessionID)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("YEET_TRANSFER_TIMEOUT", "forever")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.CacheDir = "/tmp/cache"
		cfg.SharedDir = "/tmp/shared"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"zero throughput", func(c *Config) { c.AssumedThroughput = 0 }, true},
		{"zero threshold", func(c *Config) { c.LongDownloadThreshold = 0 }, true},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"negative transfer timeout", func(c *Config) { c.TransferTimeout = -time.Second }, true},
		{"transfer timeout disabled", func(c *Config) { c.TransferTimeout = 0 }, false},
		{"missing cache dir", func(c *Config) { c.CacheDir = "" }, true},
		{"missing spool dir", func(c *Config) { c.SpoolDir = "" }, true},
		{"temp dir equals cache dir", func(c *Config) { c.TempDir = "/tmp/cache/" }, true},
		{"missing store", func(c *Config) { c.StoreURL = "" }, true},
		{"unknown facility", func(c *Config) { c.Facility = "carrier-pigeon" }, true},
		{"aria2 without rpc url", func(c *Config) { c.Facility = FacilityAria2 }, true},
		{"aria2 with rpc url", func(c *Config) {
			c.Facility = FacilityAria2
			c.Aria2.RPCURL = "http://localhost:6800/jsonrpc"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBackend(t *testing.T) {
	tests := []struct {
		base    string
		path    string
		wantErr bool
	}{
		{"https://api.example.com", "/get-video-link", false},
		{"http://localhost:8080/", "/get-video-link", false},
		{"", "/get-video-link", true},
		{"ftp://api.example.com", "/get-video-link", true},
		{"https://api.example.com", "get-video-link", true},
	}

	for _, tt := range tests {
		cfg := Config{BackendBaseURL: tt.base, MetadataPath: tt.path}
		err := cfg.ValidateBackend()
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBackend(%q, %q) error = %v, wantErr %v", tt.base, tt.path, err, tt.wantErr)
		}
	}
}

func TestMetadataURL(t *testing.T) {
	cfg := Config{BackendBaseURL: "http://localhost:8080/", MetadataPath: "/get-video-link"}
	if got := cfg.MetadataURL(); got != "http://localhost:8080/get-video-link" {
		t.Errorf("unexpected metadata url %s", got)
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.BackendBaseURL = "https://api.example.com"
	base.CacheDir = "/tmp/cache"

	override := Config{
		LongDownloadThreshold: 30 * time.Second,
		Facility:              FacilityAria2,
	}

	merged := base.Merge(override)

	if merged.BackendBaseURL != "https://api.example.com" {
		t.Errorf("expected backend preserved, got %s", merged.BackendBaseURL)
	}
	if merged.CacheDir != "/tmp/cache" {
		t.Errorf("expected cache dir preserved, got %s", merged.CacheDir)
	}
	if merged.AssumedThroughput != 1572864 {
		t.Errorf("expected throughput preserved, got %d", merged.AssumedThroughput)
	}

	if merged.LongDownloadThreshold != 30*time.Second {
		t.Errorf("expected threshold overridden to 30s, got %v", merged.LongDownloadThreshold)
	}
	if merged.Facility != FacilityAria2 {
		t.Errorf("expected facility overridden, got %s", merged.Facility)
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
