package background

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Store persists records. It is shared by every process that may receive a
// completion, so all updates are per record.
type Store interface {
	// Create stores a new record. It fails with ErrExists for a duplicate id.
	Create(ctx context.Context, rec *Record) error

	// Get returns the record with id or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Finish moves a scheduled record to a final status and returns the
	// updated record. It fails with ErrAlreadyFinished if the record is
	// already final.
	Finish(ctx context.Context, id string, status Status, at time.Time) (*Record, error)

	// List returns all records ordered by scheduling time.
	List(ctx context.Context) ([]*Record, error)

	Close() error
}

const sqlitePrefix = "sqlite://"

// OpenStore opens the store at rawURL: sqlite://<path> for a SQLite database,
// anything else is opened as a gocloud blob bucket (file://, mem://, s3://,
// gs://).
func OpenStore(ctx context.Context, rawURL string) (Store, error) {
	if path, ok := strings.CutPrefix(rawURL, sqlitePrefix); ok {
		return OpenSQLStore(ctx, path)
	}

	bucket, err := blob.OpenBucket(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("background: open bucket: %w", err)
	}
	return NewBlobStore(bucket), nil
}
