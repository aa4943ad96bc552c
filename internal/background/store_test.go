package background

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Atticdm/Yeet/internal/media"
	"gocloud.dev/blob/memblob"
)

func newRecord(id string, at time.Time) *Record {
	size := int64(50_000_000)
	return &Record{
		ID: id,
		Metadata: media.Metadata{
			DownloadURL: "https://cdn.example.com/" + id + ".mp4",
			Title:       "Video " + id,
			FileSize:    &size,
		},
		OriginalURL: "https://www.instagram.com/reel/" + id,
		Status:      Scheduled(),
		ScheduledAt: at,
	}
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sqlStore, err := OpenSQLStore(ctx, filepath.Join(t.TempDir(), "db", "records.db"))
	if err != nil {
		t.Fatalf("OpenSQLStore: %v", err)
	}
	stores := map[string]Store{
		"blob":   NewBlobStore(memblob.OpenBucket(nil)),
		"sqlite": sqlStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Create(ctx, newRecord("a", at)); err != nil {
				t.Fatalf("Create: %v", err)
			}

			rec, err := store.Get(ctx, "a")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if rec.Status.State != StateScheduled {
				t.Errorf("expected scheduled, got %s", rec.Status.State)
			}
			if rec.Metadata.Title != "Video a" || rec.Metadata.Size() != 50_000_000 {
				t.Errorf("unexpected metadata %+v", rec.Metadata)
			}
			if rec.OriginalURL != "https://www.instagram.com/reel/a" {
				t.Errorf("unexpected original url %s", rec.OriginalURL)
			}
			if !rec.ScheduledAt.Equal(at) {
				t.Errorf("expected scheduled at %v, got %v", at, rec.ScheduledAt)
			}
			if rec.FinishedAt != nil {
				t.Errorf("expected no finish time, got %v", rec.FinishedAt)
			}

			if err := store.Create(ctx, newRecord("a", at)); !errors.Is(err, ErrExists) {
				t.Errorf("expected ErrExists for duplicate, got %v", err)
			}
			if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreFinishIsForwardOnly(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Create(ctx, newRecord("a", at)); err != nil {
				t.Fatalf("Create: %v", err)
			}

			if _, err := store.Finish(ctx, "a", Scheduled(), at); err == nil {
				t.Error("expected error finishing with a non-final state")
			}

			done := at.Add(time.Minute)
			rec, err := store.Finish(ctx, "a", Completed("a.mp4"), done)
			if err != nil {
				t.Fatalf("Finish: %v", err)
			}
			if rec.Status.State != StateCompleted || rec.Status.RelativePath != "a.mp4" {
				t.Errorf("unexpected status %+v", rec.Status)
			}
			if rec.FinishedAt == nil || !rec.FinishedAt.Equal(done) {
				t.Errorf("unexpected finish time %v", rec.FinishedAt)
			}

			if _, err := store.Finish(ctx, "a", Failed("late"), done); !errors.Is(err, ErrAlreadyFinished) {
				t.Errorf("expected ErrAlreadyFinished, got %v", err)
			}

			rec, err = store.Get(ctx, "a")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if rec.Status.State != StateCompleted || rec.Status.Message != "" {
				t.Errorf("final status was overwritten: %+v", rec.Status)
			}

			if _, err := store.Finish(ctx, "missing", Failed("x"), done); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreConcurrentFinish(t *testing.T) {
	ctx := context.Background()
	at := time.Now()

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			const n = 8
			for i := 0; i < n; i++ {
				if err := store.Create(ctx, newRecord(fmt.Sprintf("r%d", i), at)); err != nil {
					t.Fatalf("Create: %v", err)
				}
			}

			// Every record is finished by two writers; exactly one wins and
			// no other record is affected.
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins = map[string]int{}
			)
			for i := 0; i < n; i++ {
				for w := 0; w < 2; w++ {
					wg.Add(1)
					go func(id string, w int) {
						defer wg.Done()
						status := Completed(id + ".mp4")
						if w == 1 {
							status = Failed("writer 1")
						}
						_, err := store.Finish(ctx, id, status, at)
						if err == nil {
							mu.Lock()
							wins[id]++
							mu.Unlock()
						} else if !errors.Is(err, ErrAlreadyFinished) {
							t.Errorf("Finish(%s): %v", id, err)
						}
					}(fmt.Sprintf("r%d", i), w)
				}
			}
			wg.Wait()

			for i := 0; i < n; i++ {
				id := fmt.Sprintf("r%d", i)
				if wins[id] != 1 {
					t.Errorf("%s: expected exactly one winner, got %d", id, wins[id])
				}
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for i, id := range []string{"c", "a", "b"} {
				if err := store.Create(ctx, newRecord(id, base.Add(time.Duration(i)*time.Second))); err != nil {
					t.Fatalf("Create: %v", err)
				}
			}
			if _, err := store.Finish(ctx, "a", Failed("boom"), base); err != nil {
				t.Fatalf("Finish: %v", err)
			}

			records, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(records) != 3 {
				t.Fatalf("expected 3 records, got %d", len(records))
			}
			for i, want := range []string{"c", "a", "b"} {
				if records[i].ID != want {
					t.Errorf("records[%d] = %s, want %s", i, records[i].ID, want)
				}
			}
			if records[1].Status.State != StateFailed || records[1].Status.Message != "boom" {
				t.Errorf("unexpected status %+v", records[1].Status)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStore(ctx, "mem://")
	if err != nil {
		t.Fatalf("OpenStore(mem): %v", err)
	}
	if _, ok := s.(*BlobStore); !ok {
		t.Errorf("expected *BlobStore, got %T", s)
	}
	s.Close()

	s, err = OpenStore(ctx, "sqlite://"+filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("OpenStore(sqlite): %v", err)
	}
	if _, ok := s.(*SQLStore); !ok {
		t.Errorf("expected *SQLStore, got %T", s)
	}
	s.Close()

	if _, err := OpenStore(ctx, "nope://bucket"); err == nil {
		t.Error("expected error for unknown scheme")
	}
}

func TestBlobStoreRejectsBadID(t *testing.T) {
	store := NewBlobStore(memblob.OpenBucket(nil))
	defer store.Close()

	if err := store.Create(context.Background(), newRecord("../x", time.Now())); err == nil {
		t.Error("expected error for id with a path separator")
	}
}
