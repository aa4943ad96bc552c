package aria2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	yhttp "github.com/Atticdm/Yeet/internal/http"
)

// Download states reported by aria2.tellStatus.
const (
	StatusActive   = "active"
	StatusWaiting  = "waiting"
	StatusPaused   = "paused"
	StatusError    = "error"
	StatusComplete = "complete"
	StatusRemoved  = "removed"
)

// Error is a JSON-RPC error returned by aria2.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("aria2: rpc error %d: %s", e.Code, e.Message)
}

// ErrNotFound is matched by errors for unknown GIDs.
var ErrNotFound = errors.New("aria2: download not found")

// Is reports GID lookups as ErrNotFound.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && strings.Contains(e.Message, "is not found")
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      string `json:"id"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error,omitempty"`
}

// Client talks to an aria2 daemon over JSON-RPC.
type Client struct {
	rpcURL string
	secret string
	http   *yhttp.Client
}

// NewClient creates a Client. client may be nil.
func NewClient(rpcURL, secret string, client *yhttp.Client) *Client {
	if client == nil {
		client = yhttp.NewClient(yhttp.DefaultOptions())
	}
	return &Client{rpcURL: rpcURL, secret: secret, http: client}
}

// Call invokes method and decodes the result into out, which may be nil.
func (c *Client) Call(ctx context.Context, out any, method string, params ...any) error {
	// The secret must be the first parameter.
	final := make([]any, 0, len(params)+1)
	if c.secret != "" {
		final = append(final, "token:"+c.secret)
	}
	final = append(final, params...)

	reply, err := c.http.PostJSON(ctx, c.rpcURL, rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		ID:      "yeet",
		Params:  final,
	})
	if err != nil {
		return fmt.Errorf("aria2: %s: %w", method, err)
	}

	var resp rpcResponse
	if err := json.Unmarshal(reply.Body, &resp); err != nil {
		return fmt.Errorf("aria2: %s: decode reply (status %d): %w", method, reply.StatusCode, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("aria2: %s: decode result: %w", method, err)
	}
	return nil
}

// AddURI queues uri for download into dir/out. gid, if set, must be 16 hex
// characters and becomes the download's id.
func (c *Client) AddURI(ctx context.Context, uri, dir, out, gid string) (string, error) {
	opts := map[string]any{
		"dir": dir,
		"out": out,
	}
	if gid != "" {
		opts["gid"] = gid
	}

	var result string
	if err := c.Call(ctx, &result, "aria2.addUri", []string{uri}, opts); err != nil {
		return "", err
	}
	return result, nil
}

// File is one file of a download.
type File struct {
	Path string `json:"path"`
}

// Status describes a download.
type Status struct {
	GID             string `json:"gid"`
	Status          string `json:"status"`
	TotalLength     string `json:"totalLength"`
	CompletedLength string `json:"completedLength"`
	ErrorCode       string `json:"errorCode"`
	ErrorMessage    string `json:"errorMessage"`
	Dir             string `json:"dir"`
	Files           []File `json:"files"`
}

// Finished reports whether the download reached a final state.
func (s *Status) Finished() bool {
	switch s.Status {
	case StatusComplete, StatusError, StatusRemoved:
		return true
	}
	return false
}

// Path returns the path of the first file, if any.
func (s *Status) Path() string {
	if len(s.Files) == 0 {
		return ""
	}
	return s.Files[0].Path
}

// Completed returns the number of downloaded bytes.
func (s *Status) Completed() int64 {
	n, _ := strconv.ParseInt(s.CompletedLength, 10, 64)
	return n
}

// TellStatus returns the status of gid.
func (c *Client) TellStatus(ctx context.Context, gid string) (*Status, error) {
	var st Status
	keys := []string{"gid", "status", "totalLength", "completedLength", "errorCode", "errorMessage", "dir", "files"}
	if err := c.Call(ctx, &st, "aria2.tellStatus", gid, keys); err != nil {
		return nil, err
	}
	return &st, nil
}

// ForceRemove aborts a download.
func (c *Client) ForceRemove(ctx context.Context, gid string) error {
	return c.Call(ctx, nil, "aria2.forceRemove", gid)
}

// RemoveDownloadResult forgets a finished download.
func (c *Client) RemoveDownloadResult(ctx context.Context, gid string) error {
	return c.Call(ctx, nil, "aria2.removeDownloadResult", gid)
}

// GIDFor derives a stable aria2 GID from an arbitrary id. The same id always
// maps to the same GID, so a relaunched process can find its downloads.
func GIDFor(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			b.WriteRune(r)
			if b.Len() == 16 {
				return b.String()
			}
		}
	}
	return b.String() + strings.Repeat("0", 16-b.Len())
}
