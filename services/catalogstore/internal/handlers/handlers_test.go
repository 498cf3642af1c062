package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/example/fiction-portal/services/catalogstore/internal/sanitize"
	"github.com/example/fiction-portal/services/catalogstore/internal/store"
)

// setupReq builds a request with chi URL params wired into the context.
func setupReq(method, url, body string, params map[string]string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateSeries(t *testing.T) {
	cs := store.NewInMemoryStore()
	handler := CreateSeries(cs)

	req := setupReq(http.MethodPost, "/v1/series", `{"title":"The Long Night","description":"d","icon":"moon"}`, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var sr store.Series
	if err := json.NewDecoder(rr.Body).Decode(&sr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sr.ID != "the-long-night" {
		t.Fatalf("expected slug id, got %q", sr.ID)
	}
}

func TestCreateSeries_MissingTitle(t *testing.T) {
	handler := CreateSeries(store.NewInMemoryStore())

	req := setupReq(http.MethodPost, "/v1/series", `{"title":"  "}`, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreateSeries_Conflict(t *testing.T) {
	cs := store.NewInMemoryStore()
	handler := CreateSeries(cs)

	first := setupReq(http.MethodPost, "/v1/series", `{"title":"Foo"}`, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, first)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	dup := setupReq(http.MethodPost, "/v1/series", `{"title":"foo"}`, nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, dup)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate slug, got %d", rr.Code)
	}
}

func TestGetSeries_NotFound(t *testing.T) {
	handler := GetSeries(store.NewInMemoryStore())

	req := setupReq(http.MethodGet, "/v1/series/ghost", "", map[string]string{"series_id": "ghost"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAppendChapter_SanitizesBody(t *testing.T) {
	cs := store.NewInMemoryStore()
	if _, err := cs.CreateSeries(context.Background(), "Foo", "", "", ""); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	handler := AppendChapter(cs, sanitize.NewStoryPolicy())

	body := `{"title":"Ch1","kind":"story","body":"<p>ok</p><script>alert(1)</script>"}`
	req := setupReq(http.MethodPost, "/v1/series/foo/chapters", body, map[string]string{"series_id": "foo"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var ch store.Chapter
	if err := json.NewDecoder(rr.Body).Decode(&ch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Contains(ch.Body, "script") {
		t.Fatalf("expected body sanitized, got %q", ch.Body)
	}
	if !strings.Contains(ch.Body, "<p>ok</p>") {
		t.Fatalf("expected safe markup kept, got %q", ch.Body)
	}
}

func TestAppendChapter_AudioRequiresLink(t *testing.T) {
	cs := store.NewInMemoryStore()
	if _, err := cs.CreateSeries(context.Background(), "Foo", "", "", ""); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	handler := AppendChapter(cs, sanitize.NewStoryPolicy())

	req := setupReq(http.MethodPost, "/v1/series/foo/chapters",
		`{"title":"Ep1","kind":"audio"}`, map[string]string{"series_id": "foo"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for audio without link, got %d", rr.Code)
	}
}

func TestAppendChapter_InvalidKind(t *testing.T) {
	cs := store.NewInMemoryStore()
	if _, err := cs.CreateSeries(context.Background(), "Foo", "", "", ""); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	handler := AppendChapter(cs, sanitize.NewStoryPolicy())

	req := setupReq(http.MethodPost, "/v1/series/foo/chapters",
		`{"title":"Ch","kind":"video"}`, map[string]string{"series_id": "foo"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rr.Code)
	}
}

func TestRemoveChapter_NotFound(t *testing.T) {
	cs := store.NewInMemoryStore()
	if _, err := cs.CreateSeries(context.Background(), "Foo", "", "", ""); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	handler := RemoveChapter(cs)

	req := setupReq(http.MethodDelete, "/v1/series/foo/chapters/ghost", "",
		map[string]string{"series_id": "foo", "chapter_id": "ghost"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPatchChapter_SanitizesBody(t *testing.T) {
	cs := store.NewInMemoryStore()
	ctx := context.Background()
	if _, err := cs.CreateSeries(ctx, "Foo", "", "", ""); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	ch, err := cs.AppendChapter(ctx, "foo", store.ChapterInput{Title: "Ch1", Kind: store.KindStory})
	if err != nil {
		t.Fatalf("AppendChapter: %v", err)
	}
	handler := PatchChapter(cs, sanitize.NewStoryPolicy())

	req := setupReq(http.MethodPatch, "/v1/series/foo/chapters/"+ch.ID,
		`{"body":"<p>new</p><iframe src=\"https://evil\"></iframe>"}`,
		map[string]string{"series_id": "foo", "chapter_id": ch.ID})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got store.Chapter
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Contains(got.Body, "iframe") || !strings.Contains(got.Body, "<p>new</p>") {
		t.Fatalf("expected sanitized body, got %q", got.Body)
	}
}

func TestEnsureProfile_CreatesDocument(t *testing.T) {
	ps := store.NewInMemoryStore()
	handler := EnsureProfile(ps)

	req := setupReq(http.MethodPut, "/v1/profiles/reader-1",
		`{"displayName":"Reader","email":"r@example.com"}`,
		map[string]string{"user_id": "reader-1"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var p store.UserProfile
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.UserID != "reader-1" || p.PreferredTheme != "night" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestPatchProfile(t *testing.T) {
	ps := store.NewInMemoryStore()
	if _, err := ps.EnsureProfile(context.Background(), "reader-1", store.ProfileSeed{}); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	handler := PatchProfile(ps)

	req := setupReq(http.MethodPatch, "/v1/profiles/reader-1",
		`{"bookmarks":["foo"],"preferredTheme":"light"}`,
		map[string]string{"user_id": "reader-1"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var p store.UserProfile
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(p.Bookmarks) != 1 || p.Bookmarks[0] != "foo" || p.PreferredTheme != "light" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	handler := GetProfile(store.NewInMemoryStore())

	req := setupReq(http.MethodGet, "/v1/profiles/ghost", "", map[string]string{"user_id": "ghost"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
