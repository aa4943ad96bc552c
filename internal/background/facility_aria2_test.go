package background

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Atticdm/Yeet/internal/aria2"
)

// fakeAria2 answers the JSON-RPC methods the facility uses.
type fakeAria2 struct {
	mu       sync.Mutex
	statuses map[string]map[string]any
	added    map[string]map[string]string
	removed  []string
}

func newFakeAria2(t *testing.T) (*fakeAria2, *aria2.Client) {
	t.Helper()
	fa := &fakeAria2{statuses: map[string]map[string]any{}, added: map[string]map[string]string{}}
	server := httptest.NewServer(http.HandlerFunc(fa.serve))
	t.Cleanup(server.Close)
	return fa, aria2.NewClient(server.URL, "", nil)
}

func (fa *fakeAria2) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	fa.mu.Lock()
	defer fa.mu.Unlock()

	resp := map[string]any{"id": "yeet", "jsonrpc": "2.0"}
	notFound := func(gid string) {
		resp["error"] = map[string]any{"code": 1, "message": "GID " + gid + " is not found"}
	}

	switch req.Method {
	case "aria2.addUri":
		var opts map[string]string
		json.Unmarshal(req.Params[1], &opts)
		fa.added[opts["gid"]] = opts
		resp["result"] = opts["gid"]
	case "aria2.tellStatus":
		var gid string
		json.Unmarshal(req.Params[0], &gid)
		if st, ok := fa.statuses[gid]; ok {
			resp["result"] = st
		} else {
			notFound(gid)
		}
	case "aria2.removeDownloadResult":
		var gid string
		json.Unmarshal(req.Params[0], &gid)
		if _, ok := fa.statuses[gid]; !ok {
			notFound(gid)
			break
		}
		delete(fa.statuses, gid)
		fa.removed = append(fa.removed, gid)
		resp["result"] = "OK"
	default:
		resp["error"] = map[string]any{"code": 1, "message": "unknown method"}
	}
	json.NewEncoder(w).Encode(resp)
}

func (fa *fakeAria2) set(gid string, st map[string]any) {
	fa.mu.Lock()
	fa.statuses[gid] = st
	fa.mu.Unlock()
}

const testID = "0f8fad5b-d9cb-469f-a165-70867728950e"

func TestAria2FacilitySchedule(t *testing.T) {
	fa, client := newFakeAria2(t)
	f := NewAria2Facility(client, "/downloads", zeroLogger())

	if err := f.Schedule(context.Background(), testID, "https://cdn.example.com/v.mp4"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	opts, ok := fa.added[aria2.GIDFor(testID)]
	if !ok {
		t.Fatalf("expected download with gid %s, got %v", aria2.GIDFor(testID), fa.added)
	}
	if opts["dir"] != "/downloads" || opts["out"] != testID+".download" {
		t.Errorf("unexpected options %v", opts)
	}
}

func TestAria2FacilityPoll(t *testing.T) {
	gid := aria2.GIDFor(testID)

	tests := []struct {
		name     string
		status   map[string]any
		done     bool
		location string
		wantErr  error
		anyErr   bool
	}{
		{"active", map[string]any{"gid": gid, "status": "active"}, false, "", nil, false},
		{"waiting", map[string]any{"gid": gid, "status": "waiting"}, false, "", nil, false},
		{"complete", map[string]any{"gid": gid, "status": "complete", "files": []map[string]string{{"path": "/downloads/x.download"}}}, true, "/downloads/x.download", nil, false},
		{"complete without files", map[string]any{"gid": gid, "status": "complete", "dir": "/downloads"}, true, "/downloads/" + testID + ".download", nil, false},
		{"error", map[string]any{"gid": gid, "status": "error", "errorCode": "3", "errorMessage": "Resource not found"}, true, "", nil, true},
		{"removed", map[string]any{"gid": gid, "status": "removed"}, true, "", nil, true},
		{"unknown", nil, true, "", ErrLost, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa, client := newFakeAria2(t)
			if tt.status != nil {
				fa.set(gid, tt.status)
			}
			f := NewAria2Facility(client, "/downloads", zeroLogger())

			out, done, err := f.Poll(context.Background(), testID)
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if done != tt.done {
				t.Errorf("done = %v, want %v", done, tt.done)
			}
			if out.Location != tt.location {
				t.Errorf("location = %q, want %q", out.Location, tt.location)
			}
			if (out.Err != nil) != tt.anyErr {
				t.Errorf("err = %v, want error %v", out.Err, tt.anyErr)
			}
			if tt.wantErr != nil && !errors.Is(out.Err, tt.wantErr) {
				t.Errorf("err = %v, want %v", out.Err, tt.wantErr)
			}
		})
	}
}

func TestAria2FacilityRelease(t *testing.T) {
	fa, client := newFakeAria2(t)
	gid := aria2.GIDFor(testID)
	fa.set(gid, map[string]any{"gid": gid, "status": "complete"})
	f := NewAria2Facility(client, "/downloads", zeroLogger())

	if err := f.Release(context.Background(), testID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(fa.removed) != 1 || fa.removed[0] != gid {
		t.Errorf("unexpected removals %v", fa.removed)
	}

	// Releasing again is not an error.
	if err := f.Release(context.Background(), testID); err != nil {
		t.Errorf("second Release: %v", err)
	}
}
