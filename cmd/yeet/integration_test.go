//go:build integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Atticdm/Yeet/internal/testutils"
)

func TestCLIWithMinioStores(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	video := testutils.GenerateVideo(2 << 20)
	cdn := testutils.StartVideoServer(t, testutils.Video{Name: "big.mp4", Data: video})

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"download_url": cdn.URL + "/big.mp4",
			"title":        "Big Video",
			"file_size":    int64(200_000_000),
		})
	}))
	defer backend.Close()

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "yeet-state")

	e := setupEnv(t, backend.URL)
	t.Setenv("YEET_STORE_URL", minio.BucketURL)
	t.Setenv("YEET_CREDENTIALS_URL", minio.BucketURL)

	t.Run("login", func(t *testing.T) {
		code, _, errOut := invoke(t, "", "login", "-cookies", "sessionid=abc", "instagram")
		if code != ExitSuccess {
			t.Fatalf("login exited %d: %s", code, errOut)
		}
	})

	var path string
	t.Run("share_in_background", func(t *testing.T) {
		code, out, errOut := invoke(t, "", "share", "-notify", "https://www.instagram.com/reel/big/")
		if code != ExitSuccess {
			t.Fatalf("share exited %d: %s", code, errOut)
		}
		path = strings.TrimSpace(out)
		if filepath.Dir(path) != e.shared {
			t.Fatalf("unexpected path %q", path)
		}
		testutils.CompareFileToData(t, path, video)
	})

	t.Run("records", func(t *testing.T) {
		code, out, errOut := invoke(t, "", "records", "-state", "completed")
		if code != ExitSuccess {
			t.Fatalf("records exited %d: %s", code, errOut)
		}
		id := strings.TrimSuffix(filepath.Base(path), ".mp4")
		if !strings.Contains(out, id) {
			t.Errorf("record %s missing from %q", id, out)
		}
	})

	t.Run("services", func(t *testing.T) {
		_, out, _ := invoke(t, "", "services")
		if !strings.Contains(out, "instagram  yes") {
			t.Errorf("expected stored instagram cookies, got %q", out)
		}
	})
}
