package transfer

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// DefaultExtension is used when neither the title nor the URL carry one.
const DefaultExtension = "mp4"

const maxExtensionLen = 5

// mediaExtensions are the extensions a title may carry itself. Anything else
// after a dot is part of the name.
var mediaExtensions = map[string]bool{
	"mp4": true, "m4v": true, "mov": true, "webm": true, "mkv": true,
	"avi": true, "3gp": true, "flv": true, "wmv": true, "mpg": true,
	"mpeg": true, "ts": true, "m4a": true, "mp3": true, "gif": true,
}

var forbidden = strings.NewReplacer(
	`\`, "-", "/", "-", ":", "-", "*", "-", "?", "-",
	`"`, "-", "<", "-", ">", "-", "|", "-", "#", "-", "%", "-",
)

// SanitizeBaseName makes a title safe to use as a file name. Everything from
// the first '?' on is dropped, path and shell-hostile characters become '-'
// and surrounding whitespace is trimmed. It is idempotent.
func SanitizeBaseName(title string) string {
	if i := strings.IndexByte(title, '?'); i >= 0 {
		title = title[:i]
	}
	title = forbidden.Replace(title)
	title = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '-'
		}
		return r
	}, title)
	return strings.TrimSpace(title)
}

// FileName derives the cache file name for a video. The sanitized title keeps
// its own extension if it is a known media type, otherwise the extension is
// inferred from the download URL. An empty title gets a random name.
func FileName(title, downloadURL string) string {
	base := SanitizeBaseName(title)
	if base == "" {
		base = uuid.NewString()
	}
	if hasMediaExtension(base) {
		return base
	}
	return base + "." + InferExtension(downloadURL)
}

// InferExtension returns the extension of the URL path without the dot, or
// DefaultExtension when there is no usable one.
func InferExtension(downloadURL string) string {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return DefaultExtension
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if !isExtension(ext) {
		return DefaultExtension
	}
	return strings.ToLower(ext)
}

func hasMediaExtension(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return false
	}
	return mediaExtensions[strings.ToLower(name[i+1:])]
}

func isExtension(ext string) bool {
	if ext == "" || len(ext) > maxExtensionLen {
		return false
	}
	for _, r := range ext {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
