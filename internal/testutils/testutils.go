//go:build integration

// Package testutils provides shared test infrastructure for integration tests.
package testutils

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob"
)

// Video is a file served by a VideoServer.
type Video struct {
	Name string
	Data []byte

	// HideLength omits Content-Length, as chunked CDN responses do.
	HideLength bool
}

// GenerateVideo returns size bytes of deterministic content.
func GenerateVideo(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// StartVideoServer serves videos by name and answers unknown paths with 404.
func StartVideoServer(t *testing.T, videos ...Video) *httptest.Server {
	t.Helper()

	byPath := make(map[string]Video, len(videos))
	for _, v := range videos {
		byPath["/"+v.Name] = v
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, ok := byPath[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		if !v.HideLength {
			w.Header().Set("Content-Length", strconv.Itoa(len(v.Data)))
		}
		w.Write(v.Data)
	}))
	t.Cleanup(server.Close)
	return server
}

// CompareFileToData fails the test unless the file at path holds expected.
func CompareFileToData(t *testing.T, path string, expected []byte) {
	t.Helper()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(got) != len(expected) {
		t.Fatalf("%s: got %d bytes, want %d", path, len(got), len(expected))
	}
	if !bytes.Equal(got, expected) {
		t.Fatalf("%s: content mismatch", path)
	}
}

// MinioEnv contains connection information for a Minio test environment.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string
	Endpoint  string
}

// OpenBucket opens a gocloud bucket connection to the Minio environment.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// StartMinioContainer starts a Minio container with a pre-created bucket. The
// container is terminated when the test ends.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	// minio and mc talk over a private network.
	networkName := fmt.Sprintf("yeet-minio-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{Name: networkName},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(context.Background()) })

	minio, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          "minio/minio:latest",
			ExposedPorts:   []string{"9000/tcp"},
			Networks:       []string{networkName},
			NetworkAliases: map[string][]string{networkName: {"minio"}},
			Env: map[string]string{
				"MINIO_ROOT_USER":     accessKey,
				"MINIO_ROOT_PASSWORD": secretKey,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}
	t.Cleanup(func() { minio.Terminate(context.Background()) })

	createBucket(t, ctx, networkName, accessKey, secretKey, bucketName)

	host, err := minio.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := minio.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}
	endpoint := fmt.Sprintf("%s:%s", host, port.Port())

	// gocloud reads credentials from the AWS environment.
	t.Setenv("AWS_ACCESS_KEY_ID", accessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", secretKey)

	return &MinioEnv{
		Container: minio,
		BucketURL: fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1",
			bucketName, endpoint),
		Endpoint: endpoint,
	}
}

// createBucket runs a one-shot minio/mc container that creates bucketName.
func createBucket(t *testing.T, ctx context.Context, networkName, accessKey, secretKey, bucketName string) {
	t.Helper()

	mc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      "minio/mc:latest",
			Networks:   []string{networkName},
			Entrypoint: []string{"/bin/sh", "-c"},
			Cmd: []string{fmt.Sprintf(
				"/usr/bin/mc alias set local http://minio:9000 %s %s && /usr/bin/mc mb local/%s",
				accessKey, secretKey, bucketName,
			)},
			WaitingFor: wait.ForExit(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start mc container: %v", err)
	}
	defer mc.Terminate(ctx)
}
