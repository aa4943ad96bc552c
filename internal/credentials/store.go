package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

var (
	ErrNotFound       = errors.New("credentials: no cookies stored")
	ErrUnknownService = errors.New("credentials: unknown service")
)

const prefix = "credentials/"

// Store keeps login cookies per service in a blob bucket, one object per
// service.
type Store struct {
	bucket *blob.Bucket
}

// Open opens the bucket at bucketURL.
func Open(ctx context.Context, bucketURL string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("credentials: open bucket: %w", err)
	}
	return NewStore(bucket), nil
}

// NewStore creates a Store that owns bucket.
func NewStore(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

func key(service string) string { return prefix + service + ".json" }

// Save replaces the cookies of service.
func (s *Store) Save(ctx context.Context, service string, cookies map[string]string) error {
	svc, ok := Lookup(service)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	if len(cookies) == 0 {
		return ErrNoCookies
	}

	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("credentials: marshal cookies: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, key(svc.Name), data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("credentials: write %s: %w", svc.Name, err)
	}
	return nil
}

// Load returns the cookies of service or ErrNotFound.
func (s *Store) Load(ctx context.Context, service string) (map[string]string, error) {
	svc, ok := Lookup(service)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}

	data, err := s.bucket.ReadAll(ctx, key(svc.Name))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, svc.Name)
		}
		return nil, fmt.Errorf("credentials: read %s: %w", svc.Name, err)
	}

	var cookies map[string]string
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("credentials: parse %s: %w", svc.Name, err)
	}
	return cookies, nil
}

// Delete removes the cookies of service. Deleting missing cookies is not an
// error.
func (s *Store) Delete(ctx context.Context, service string) error {
	svc, ok := Lookup(service)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	err := s.bucket.Delete(ctx, key(svc.Name))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("credentials: delete %s: %w", svc.Name, err)
	}
	return nil
}

// List returns the names of services with stored cookies.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string

	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("credentials: list: %w", err)
		}
		name := strings.TrimSuffix(path.Base(obj.Key), ".json")
		if _, ok := Lookup(name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// CookiesFor returns the stored cookies for the service of pageURL. Pages of
// unknown services and services without stored cookies yield nil.
func (s *Store) CookiesFor(ctx context.Context, pageURL string) (map[string]string, error) {
	svc, ok := ForURL(pageURL)
	if !ok {
		return nil, nil
	}
	cookies, err := s.Load(ctx, svc.Name)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return cookies, err
}

func (s *Store) Close() error {
	return s.bucket.Close()
}
