package background

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

const (
	recordsPrefix = "records/"
	statusPrefix  = "status/"
)

// finalStatus is written once, next to the immutable record.
type finalStatus struct {
	Status     Status    `json:"status"`
	FinishedAt time.Time `json:"finished_at"`
}

// BlobStore keeps each record in its own object:
//
//	records/<id>.json   the scheduled record, never rewritten
//	status/<id>.json    the final status, created at most once
//
// Both objects are written with IfNotExist. How strict that is depends on the
// driver: object stores such as S3 and GCS enforce it on the server, while
// file:// buckets only check before writing, so two processes racing on the
// same record can both pass. For a local store shared between processes use
// SQLStore (sqlite://), which updates each row atomically.
type BlobStore struct {
	bucket *blob.Bucket
}

// NewBlobStore creates a BlobStore that owns bucket.
func NewBlobStore(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

func recordKey(id string) string { return recordsPrefix + id + ".json" }
func statusKey(id string) string { return statusPrefix + id + ".json" }

func (s *BlobStore) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" || strings.ContainsAny(rec.ID, "/\\") {
		return fmt.Errorf("background: invalid record id %q", rec.ID)
	}

	stored := *rec
	stored.Status = Scheduled()
	stored.FinishedAt = nil

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("background: marshal record: %w", err)
	}
	if err := s.writeOnce(ctx, recordKey(rec.ID), data); err != nil {
		if isPrecondition(err) {
			return fmt.Errorf("%w: %s", ErrExists, rec.ID)
		}
		return fmt.Errorf("background: write record: %w", err)
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.bucket.ReadAll(ctx, recordKey(id))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("background: read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("background: parse record %s: %w", id, err)
	}

	data, err = s.bucket.ReadAll(ctx, statusKey(id))
	if err != nil {
		if isNotFound(err) {
			return &rec, nil
		}
		return nil, fmt.Errorf("background: read status: %w", err)
	}

	var fs finalStatus
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("background: parse status %s: %w", id, err)
	}
	rec.Status = fs.Status
	rec.FinishedAt = &fs.FinishedAt
	return &rec, nil
}

func (s *BlobStore) Finish(ctx context.Context, id string, status Status, at time.Time) (*Record, error) {
	if !status.Final() {
		return nil, fmt.Errorf("background: %q is not a final state", status.State)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status.Final() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyFinished, id)
	}

	data, err := json.Marshal(finalStatus{Status: status, FinishedAt: at.UTC()})
	if err != nil {
		return nil, fmt.Errorf("background: marshal status: %w", err)
	}
	if err := s.writeOnce(ctx, statusKey(id), data); err != nil {
		if isPrecondition(err) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyFinished, id)
		}
		return nil, fmt.Errorf("background: write status: %w", err)
	}

	finished := at.UTC()
	rec.Status = status
	rec.FinishedAt = &finished
	return rec, nil
}

func (s *BlobStore) List(ctx context.Context) ([]*Record, error) {
	var records []*Record

	iter := s.bucket.List(&blob.ListOptions{Prefix: recordsPrefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("background: list records: %w", err)
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, ".json") {
			continue
		}

		id := strings.TrimSuffix(path.Base(obj.Key), ".json")
		rec, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ScheduledAt.Before(records[j].ScheduledAt)
	})
	return records, nil
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func (s *BlobStore) writeOnce(ctx context.Context, key string, data []byte) error {
	return s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{
		ContentType: "application/json",
		IfNotExist:  true,
	})
}

func isNotFound(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}

func isPrecondition(err error) bool {
	return gcerrors.Code(err) == gcerrors.FailedPrecondition
}
