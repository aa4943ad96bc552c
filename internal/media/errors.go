package media

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by the resolver, the transfer engine and the
// orchestrator. Use errors.Is to classify.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrAuthRequired    = errors.New("login required")
	ErrGeoBlocked      = errors.New("content is geo-blocked")
	ErrRateLimited     = errors.New("rate limited")
	ErrTransport       = errors.New("network error")
	ErrInvalidResponse = errors.New("invalid response")
	ErrDownloadFailed  = errors.New("download failed")
	ErrFilePreparation = errors.New("failed to prepare file")
	ErrCancelled       = errors.New("cancelled")
)

// Backend error codes sent in the errorCode field.
const (
	CodeLoginRequired  = "ERR_LOGIN_REQUIRED"
	CodeGeoBlock       = "ERR_GEO_BLOCK"
	CodeRateLimited    = "ERR_RATE_LIMITED"
	CodeUnsupportedURL = "ERR_UNSUPPORTED_URL"
	CodeDownloadFailed = "ERR_DOWNLOAD_FAILED"
)

// BackendError is a structured non-200 reply from the metadata backend.
//
// Unwrap classifies the reply into one of the sentinel errors above, using the
// machine code when present and the HTTP status otherwise. Generic failures
// unwrap to nothing.
type BackendError struct {
	Status  int    // HTTP status code
	Message string // human readable message from the backend
	Code    string // optional machine code, e.g. ERR_LOGIN_REQUIRED
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

func (e *BackendError) Unwrap() error {
	switch e.Code {
	case CodeLoginRequired:
		return ErrAuthRequired
	case CodeGeoBlock:
		return ErrGeoBlocked
	case CodeRateLimited:
		return ErrRateLimited
	case CodeUnsupportedURL:
		return ErrInvalidInput
	}

	switch e.Status {
	case http.StatusBadRequest:
		return ErrInvalidInput
	case http.StatusUnauthorized:
		return ErrAuthRequired
	case http.StatusForbidden:
		return ErrGeoBlocked
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Message returns text suitable for showing to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var be *BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}

	switch {
	case errors.Is(err, ErrCancelled):
		return "Cancelled"
	case errors.Is(err, ErrAuthRequired):
		return "Login required for this content"
	case errors.Is(err, ErrGeoBlocked):
		return "Content is geo-blocked in your region"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests, try again later"
	case errors.Is(err, ErrInvalidInput):
		return "No shareable link found"
	case errors.Is(err, ErrTransport):
		return "Network error, check your connection"
	case errors.Is(err, ErrInvalidResponse):
		return "Unexpected response from server"
	case errors.Is(err, ErrFilePreparation):
		return "Could not save the video"
	case errors.Is(err, ErrDownloadFailed):
		return "Download failed"
	}
	return err.Error()
}
