package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClient_GetSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/series/foo" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer s3cret" {
			t.Errorf("expected bearer token, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(Series{ID: "foo", Title: "Foo", Chapters: []Chapter{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ClientConfig{Token: "s3cret"})
	sr, err := c.GetSeries(context.Background(), "foo")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if sr.ID != "foo" || sr.Title != "Foo" {
		t.Fatalf("unexpected series %+v", sr)
	}
}

func TestClient_NotFoundMapsToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":"NOT_FOUND"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ClientConfig{})
	_, err := c.GetSeries(context.Background(), "ghost")
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestClient_RetriesTransientReadFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(seriesListResponse{Series: []Series{{ID: "foo"}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ClientConfig{MaxRetries: 3, RetryBaseDelay: time.Millisecond})
	out, err := c.ListSeries(context.Background())
	if err != nil {
		t.Fatalf("ListSeries: %v", err)
	}
	if len(out) != 1 || out[0].ID != "foo" {
		t.Fatalf("unexpected list %+v", out)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_DoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ClientConfig{MaxRetries: 3, RetryBaseDelay: time.Millisecond})
	_, err := c.GetSeries(context.Background(), "ghost")
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_MutationsRunOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ClientConfig{MaxRetries: 3, RetryBaseDelay: time.Millisecond})
	_, err := c.CreateSeries(context.Background(), SeriesInput{Title: "Foo"})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected mutation attempted once, got %d", calls.Load())
	}
}

func TestClient_DeleteNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ClientConfig{})
	if err := c.DeleteSeries(context.Background(), "foo"); err != nil {
		t.Fatalf("DeleteSeries: %v", err)
	}
}

func TestClient_EnsureProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/v1/profiles/reader-1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var seed ProfileSeed
		_ = json.NewDecoder(r.Body).Decode(&seed)
		_ = json.NewEncoder(w).Encode(UserProfile{
			UserID:          "reader-1",
			DisplayName:     seed.DisplayName,
			PreferredTheme:  "night",
			Bookmarks:       []string{},
			ReadingHistory:  []HistoryEntry{},
			ReadingProgress: map[string]int{},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ClientConfig{})
	p, err := c.EnsureProfile(context.Background(), "reader-1", ProfileSeed{DisplayName: "Reader"})
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if p.DisplayName != "Reader" || p.PreferredTheme != "night" {
		t.Fatalf("unexpected profile %+v", p)
	}
}
