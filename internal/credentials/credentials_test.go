package credentials

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gocloud.dev/blob/memblob"
)

func TestForURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.instagram.com/reel/abc/", "instagram"},
		{"https://instagram.com/p/x", "instagram"},
		{"https://youtu.be/dQw4w9WgXcQ", "youtube"},
		{"https://m.youtube.com/watch?v=1", "youtube"},
		{"https://fb.watch/abc", "facebook"},
		{"https://www.linkedin.com/posts/x", "linkedin"},
		{"https://vm.tiktok.com/ZM123/", "tiktok"},
		{"https://notinstagram.com/x", ""},
		{"https://example.com/video", ""},
		{"not a url", ""},
	}

	for _, tt := range tests {
		svc, ok := ForURL(tt.url)
		if tt.want == "" {
			if ok {
				t.Errorf("ForURL(%q) = %s, want none", tt.url, svc.Name)
			}
			continue
		}
		if !ok || svc.Name != tt.want {
			t.Errorf("ForURL(%q) = %s, %v, want %s", tt.url, svc.Name, ok, tt.want)
		}
	}
}

func TestLookupAndMissing(t *testing.T) {
	svc, ok := Lookup(" YouTube ")
	if !ok {
		t.Fatal("expected youtube")
	}
	missing := svc.Missing(map[string]string{"SID": "1", "APISID": ""})
	if !reflect.DeepEqual(missing, []string{"SAPISID", "APISID"}) {
		t.Errorf("unexpected missing cookies %v", missing)
	}
	if _, ok := Lookup("myspace"); ok {
		t.Error("unexpected service")
	}
	if len(Services()) != 5 {
		t.Errorf("expected 5 services, got %d", len(Services()))
	}
}

func TestParseCookies(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    map[string]string
		wantErr bool
	}{
		{"header", "sessionid=abc; csrftoken=x", map[string]string{"sessionid": "abc", "csrftoken": "x"}, false},
		{"object", `{"li_at": "tok"}`, map[string]string{"li_at": "tok"}, false},
		{"export", `[{"name":"c_user","value":"1","domain":".facebook.com"},{"name":"xs","value":"2"}]`, map[string]string{"c_user": "1", "xs": "2"}, false},
		{"empty", "  ", nil, true},
		{"empty object", "{}", nil, true},
		{"bad json", "{nope", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCookies(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCookies() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCookies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memblob.OpenBucket(nil))
	defer store.Close()

	if _, err := store.Load(ctx, "instagram"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	cookies := map[string]string{"sessionid": "abc"}
	if err := store.Save(ctx, "instagram", cookies); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "linkedin", map[string]string{"li_at": "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "instagram")
	if err != nil || !reflect.DeepEqual(got, cookies) {
		t.Errorf("Load = %v, %v", got, err)
	}

	names, err := store.List(ctx)
	if err != nil || !reflect.DeepEqual(names, []string{"instagram", "linkedin"}) {
		t.Errorf("List = %v, %v", names, err)
	}

	if err := store.Delete(ctx, "instagram"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "instagram"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if _, err := store.Load(ctx, "instagram"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreRejects(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memblob.OpenBucket(nil))
	defer store.Close()

	if err := store.Save(ctx, "myspace", map[string]string{"a": "b"}); !errors.Is(err, ErrUnknownService) {
		t.Errorf("expected ErrUnknownService, got %v", err)
	}
	if err := store.Save(ctx, "instagram", nil); !errors.Is(err, ErrNoCookies) {
		t.Errorf("expected ErrNoCookies, got %v", err)
	}
	if _, err := store.Load(ctx, "myspace"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("expected ErrUnknownService, got %v", err)
	}
}

func TestCookiesFor(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memblob.OpenBucket(nil))
	defer store.Close()

	if err := store.Save(ctx, "instagram", map[string]string{"sessionid": "abc"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.CookiesFor(ctx, "https://www.instagram.com/reel/x")
	if err != nil || got["sessionid"] != "abc" {
		t.Errorf("CookiesFor(instagram) = %v, %v", got, err)
	}

	for _, u := range []string{"https://youtu.be/x", "https://example.com/v"} {
		got, err := store.CookiesFor(ctx, u)
		if err != nil || got != nil {
			t.Errorf("CookiesFor(%s) = %v, %v, want nil", u, got, err)
		}
	}
}

func TestOpenFileBucket(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(ctx, "file://"+dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Save(ctx, "tiktok", map[string]string{"sessionid": "t"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	store.Close()

	reopened, err := Open(ctx, "file://"+dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	if got, err := reopened.Load(ctx, "tiktok"); err != nil || got["sessionid"] != "t" {
		t.Errorf("Load after reopen = %v, %v", got, err)
	}
}
