package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Metadata describes a resolved video: where to fetch it and how to present it.
// It is immutable once returned by the resolver.
type Metadata struct {
	DownloadURL  string   `json:"download_url"`
	Title        string   `json:"title"`
	FileSize     *int64   `json:"file_size,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
}

// wireMetadata accepts both the snake_case and camelCase spellings the backend
// has used over time.
type wireMetadata struct {
	DownloadURL       string          `json:"download_url"`
	DownloadURLCamel  string          `json:"downloadUrl"`
	Title             string          `json:"title"`
	FileSize          *int64          `json:"file_size"`
	FileSizeCamel     *int64          `json:"fileSize"`
	Duration          json.RawMessage `json:"duration"`
	Thumbnail         string          `json:"thumbnail"`
	ThumbnailURL      string          `json:"thumbnail_url"`
	ThumbnailURLCamel string          `json:"thumbnailUrl"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var w wireMetadata
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	duration, err := parseDuration(w.Duration)
	if err != nil {
		return fmt.Errorf("media: duration: %w", err)
	}

	*m = Metadata{
		DownloadURL:  firstNonEmpty(w.DownloadURL, w.DownloadURLCamel),
		Title:        w.Title,
		FileSize:     w.FileSize,
		Duration:     duration,
		ThumbnailURL: firstNonEmpty(w.ThumbnailURL, w.ThumbnailURLCamel, w.Thumbnail),
	}
	if m.FileSize == nil {
		m.FileSize = w.FileSizeCamel
	}
	return nil
}

// Size returns the advertised file size, or 0 when unknown.
func (m *Metadata) Size() int64 {
	if m == nil || m.FileSize == nil || *m.FileSize < 0 {
		return 0
	}
	return *m.FileSize
}

// Validate checks that the download URL is an absolute http(s) URL.
func (m *Metadata) Validate() error {
	if m == nil {
		return errors.New("media: nil metadata")
	}
	return ValidateHTTPURL(m.DownloadURL)
}

// ValidateHTTPURL reports whether raw is an absolute http or https URL with a host.
func ValidateHTTPURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("media: url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("media: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("media: unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("media: url has no host")
	}
	return nil
}

// parseDuration accepts seconds as a JSON number or a string, including the
// "h:mm:ss" form printed by extractors.
func parseDuration(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("unsupported value %s", string(raw))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var total float64
	for _, part := range strings.Split(s, ":") {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", s)
		}
		total = total*60 + v
	}
	return &total, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
