// Package http provides the HTTP client used to talk to the metadata backend
// and to stream media files.
//
// This package handles:
//   - JSON POST requests with a bounded reply size
//   - Streaming GET requests for downloads
//   - Request and first-byte timeouts
//   - Mapping of status codes to sentinel errors
//
// It never retries; callers decide whether to try again.
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    Timeout:               30 * time.Second,
//	    ResponseHeaderTimeout: 30 * time.Second,
//	})
//
//	reply, err := client.PostJSON(ctx, url, payload)
//	// reply.StatusCode, reply.Body
//
//	stream, err := client.Get(ctx, url)
//	defer stream.Body.Close()
package http
