package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/fiction-portal/internal/platform/auth"
	"github.com/example/fiction-portal/internal/platform/signing"
	"github.com/example/fiction-portal/services/portal/internal/catalog"
	"github.com/example/fiction-portal/services/portal/internal/gateway"
	"github.com/example/fiction-portal/services/portal/internal/readingstate"
)

// setupReq builds a request with chi URL params and optional user id in context.
func setupReq(method, target, body string, params map[string]string, userID string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != "" {
		ctx = auth.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

func newFixtures(t *testing.T) (*gateway.Memory, *catalog.Cache, *readingstate.Service) {
	t.Helper()
	gw := gateway.NewMemory()
	c := catalog.New(gw)
	rs := readingstate.New(gw)
	if _, err := gw.EnsureProfile(context.Background(), "reader-1", gateway.ProfileSeed{}); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	return gw, c, rs
}

func TestGetCatalog_EmptyStoreServesDefaults(t *testing.T) {
	_, c, _ := newFixtures(t)

	rr := httptest.NewRecorder()
	GetCatalog(c).ServeHTTP(rr, setupReq(http.MethodGet, "/v1/catalog", "", nil, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp catalogResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Series) == 0 || resp.Series[0].ID != "shadow-slave-peaceful-dreams" {
		t.Fatalf("expected default catalog, got %+v", resp.Series)
	}
}

func TestGetCatalogSnapshot_BeforeFirstFetch(t *testing.T) {
	gw := gateway.NewMemory()
	if _, err := gw.CreateSeries(context.Background(), gateway.SeriesInput{Title: "Foo"}); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	c := catalog.New(gw)

	rr := httptest.NewRecorder()
	GetCatalogSnapshot(c).ServeHTTP(rr, setupReq(http.MethodGet, "/v1/catalog/snapshot", "", nil, ""))

	var resp catalogResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Nothing fetched yet, so the snapshot is the default collection.
	if len(resp.Series) != 1 || resp.Series[0].ID != "shadow-slave-peaceful-dreams" {
		t.Fatalf("expected defaults before first fetch, got %+v", resp.Series)
	}
}

func TestGetSeries_NotFound(t *testing.T) {
	_, c, _ := newFixtures(t)

	rr := httptest.NewRecorder()
	GetSeries(c, nil).ServeHTTP(rr, setupReq(http.MethodGet, "/v1/series/ghost", "", map[string]string{"series_id": "ghost"}, ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestGetChapterSource_Audio(t *testing.T) {
	gw, c, _ := newFixtures(t)
	ctx := context.Background()
	if _, err := gw.CreateSeries(ctx, gateway.SeriesInput{Title: "Foo"}); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	ch, err := gw.AppendChapter(ctx, "foo", gateway.ChapterInput{
		Title: "Ep1", Kind: "audio", Link: "https://host.example/file/d/ABC123/view",
	})
	if err != nil {
		t.Fatalf("AppendChapter: %v", err)
	}

	signer := signing.New("test-secret")
	rr := httptest.NewRecorder()
	GetChapterSource(c, signer, nil, nil).ServeHTTP(rr, setupReq(http.MethodGet, "/v1/series/foo/chapters/"+ch.ID+"/source", "",
		map[string]string{"series_id": "foo", "chapter_id": ch.ID}, "reader-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp sourceResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source == nil || !resp.Source.ThirdPartyHost {
		t.Fatalf("expected third-party source, got %+v", resp.Source)
	}
	if !strings.Contains(resp.Source.PlayableURL, "ABC123") || !strings.Contains(resp.Source.EmbedURL, "ABC123/preview") {
		t.Fatalf("unexpected source %+v", resp.Source)
	}
	if resp.PlayURL == "" {
		t.Fatal("expected signed play url")
	}

	// The signed URL round-trips through the play endpoint.
	u, err := url.Parse(resp.PlayURL)
	if err != nil {
		t.Fatalf("parse play url: %v", err)
	}
	playReq := httptest.NewRequest(http.MethodGet, "/v1/play?"+u.RawQuery, nil)
	playRR := httptest.NewRecorder()
	Play(signer).ServeHTTP(playRR, playReq)
	if playRR.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", playRR.Code, playRR.Body.String())
	}
	if loc := playRR.Header().Get("Location"); !strings.Contains(loc, "ABC123") {
		t.Fatalf("unexpected redirect %q", loc)
	}
}

func TestGetChapterSource_StoryBodyAndDocumentLink(t *testing.T) {
	gw, c, _ := newFixtures(t)
	ctx := context.Background()
	if _, err := gw.CreateSeries(ctx, gateway.SeriesInput{Title: "Foo"}); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	inline, err := gw.AppendChapter(ctx, "foo", gateway.ChapterInput{Title: "Ch1", Kind: "story", Body: "<p>text</p>"})
	if err != nil {
		t.Fatalf("AppendChapter: %v", err)
	}
	linked, err := gw.AppendChapter(ctx, "foo", gateway.ChapterInput{
		Title: "Ch2", Kind: "story", Link: "https://docs.host.example/document/d/D1/edit",
	})
	if err != nil {
		t.Fatalf("AppendChapter: %v", err)
	}

	signer := signing.New("test-secret")

	rr := httptest.NewRecorder()
	GetChapterSource(c, signer, nil, nil).ServeHTTP(rr, setupReq(http.MethodGet, "/", "",
		map[string]string{"series_id": "foo", "chapter_id": inline.ID}, "reader-1"))
	var resp sourceResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Body != "<p>text</p>" || resp.DocumentURL != "" {
		t.Fatalf("expected inline body, got %+v", resp)
	}

	rr = httptest.NewRecorder()
	GetChapterSource(c, signer, nil, nil).ServeHTTP(rr, setupReq(http.MethodGet, "/", "",
		map[string]string{"series_id": "foo", "chapter_id": linked.ID}, "reader-1"))
	resp = sourceResponse{}
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.DocumentURL != "https://docs.host.example/document/d/D1/preview" {
		t.Fatalf("expected preview rewrite, got %+v", resp)
	}
}

func TestGetChapterSource_Unauthorized(t *testing.T) {
	_, c, _ := newFixtures(t)

	rr := httptest.NewRecorder()
	GetChapterSource(c, signing.New("s"), nil, nil).ServeHTTP(rr, setupReq(http.MethodGet, "/", "",
		map[string]string{"series_id": "foo", "chapter_id": "ch"}, ""))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestPlay_RejectsTamperedSignature(t *testing.T) {
	signer := signing.New("test-secret")
	signed := signer.Sign("https://cdn.example.com/a.mp3", "reader-1", time.Now().Add(time.Minute))
	playURL, err := signing.BuildSignedURL("/v1/play", signed)
	if err != nil {
		t.Fatalf("BuildSignedURL: %v", err)
	}

	u, _ := url.Parse(playURL)
	q := u.Query()
	q.Set("url", "https://evil.example.com/steal.mp3")
	rr := httptest.NewRecorder()
	Play(signer).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/play?"+q.Encode(), nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for tampered url, got %d", rr.Code)
	}
}

func TestEnsureMeAndGetMe(t *testing.T) {
	gw := gateway.NewMemory()
	rs := readingstate.New(gw)

	rr := httptest.NewRecorder()
	EnsureMe(rs).ServeHTTP(rr, setupReq(http.MethodPut, "/v1/me",
		`{"displayName":"Reader","email":"r@example.com"}`, nil, "reader-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	GetMe(rs).ServeHTTP(rr, setupReq(http.MethodGet, "/v1/me", "", nil, "reader-1"))
	var p gateway.UserProfile
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.DisplayName != "Reader" || p.PreferredTheme != "night" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestToggleBookmarkAndList(t *testing.T) {
	gw, c, rs := newFixtures(t)
	if _, err := gw.CreateSeries(context.Background(), gateway.SeriesInput{Title: "Foo"}); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	rr := httptest.NewRecorder()
	ToggleBookmark(rs, nil).ServeHTTP(rr, setupReq(http.MethodPost, "/v1/me/bookmarks/foo/toggle", "",
		map[string]string{"series_id": "foo"}, "reader-1"))
	var tb toggleBookmarkResponse
	if err := json.NewDecoder(rr.Body).Decode(&tb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !tb.Bookmarked {
		t.Fatal("expected bookmarked")
	}

	rr = httptest.NewRecorder()
	ListBookmarks(rs, c).ServeHTTP(rr, setupReq(http.MethodGet, "/v1/me/bookmarks", "", nil, "reader-1"))
	var list bookmarksResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Series) != 1 || list.Series[0].ID != "foo" {
		t.Fatalf("expected bookmarked series resolved, got %+v", list.Series)
	}
}

func TestRecordHistoryAndGet(t *testing.T) {
	_, _, rs := newFixtures(t)

	rr := httptest.NewRecorder()
	RecordHistory(rs, nil).ServeHTTP(rr, setupReq(http.MethodPost, "/v1/me/history",
		`{"seriesId":"foo","chapterId":"ch-1"}`, nil, "reader-1"))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	GetHistory(rs).ServeHTTP(rr, setupReq(http.MethodGet, "/v1/me/history", "", nil, "reader-1"))
	var h historyResponse
	if err := json.NewDecoder(rr.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(h.History) != 1 || h.History[0].ChapterID != "ch-1" {
		t.Fatalf("unexpected history %+v", h.History)
	}
}

func TestUpdateProgress_ReturnsQuantizedValue(t *testing.T) {
	_, _, rs := newFixtures(t)

	rr := httptest.NewRecorder()
	UpdateProgress(rs).ServeHTTP(rr, setupReq(http.MethodPut, "/v1/me/progress/ch-1",
		`{"percent":57}`, map[string]string{"chapter_id": "ch-1"}, "reader-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp progressResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Percent != 60 {
		t.Fatalf("expected 60, got %d", resp.Percent)
	}
}

func TestContinueReadingEndpoint(t *testing.T) {
	_, _, rs := newFixtures(t)
	ctx := context.Background()
	if _, err := rs.UpdateProgress(ctx, "reader-1", "ch-1", 50); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if _, err := rs.UpdateProgress(ctx, "reader-1", "ch-2", 100); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	rr := httptest.NewRecorder()
	ContinueReading(rs).ServeHTTP(rr, setupReq(http.MethodGet, "/v1/me/continue", "", nil, "reader-1"))
	var resp continueResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ChapterID != "ch-1" {
		t.Fatalf("expected only in-flight chapter, got %+v", resp.Items)
	}
}

func TestSetTheme(t *testing.T) {
	_, _, rs := newFixtures(t)

	rr := httptest.NewRecorder()
	SetTheme(rs).ServeHTTP(rr, setupReq(http.MethodPut, "/v1/me/theme", `{"theme":"light"}`, nil, "reader-1"))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	p, err := rs.Profile(context.Background(), "reader-1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.PreferredTheme != "light" {
		t.Fatalf("expected theme persisted, got %q", p.PreferredTheme)
	}
}

func TestAdminCreateSeries_MissingTitle(t *testing.T) {
	_, c, _ := newFixtures(t)

	rr := httptest.NewRecorder()
	AdminCreateSeries(c).ServeHTTP(rr, setupReq(http.MethodPost, "/v1/admin/series", `{"title":" "}`, nil, "admin-1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdminFlow_CreateAddDeleteChapter(t *testing.T) {
	_, c, _ := newFixtures(t)

	rr := httptest.NewRecorder()
	AdminCreateSeries(c).ServeHTTP(rr, setupReq(http.MethodPost, "/v1/admin/series",
		`{"title":"Foo","icon":"📖"}`, nil, "admin-1"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	AdminAddChapter(c).ServeHTTP(rr, setupReq(http.MethodPost, "/v1/admin/series/foo/chapters",
		`{"title":"Ch1","kind":"story","body":"<p>one</p>"}`, map[string]string{"series_id": "foo"}, "admin-1"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var ch gateway.Chapter
	if err := json.NewDecoder(rr.Body).Decode(&ch); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = httptest.NewRecorder()
	AdminDeleteChapter(c).ServeHTTP(rr, setupReq(http.MethodDelete, "/", "",
		map[string]string{"series_id": "foo", "chapter_id": ch.ID}, "admin-1"))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	sr, ok := c.GetByID(context.Background(), "foo")
	if !ok || len(sr.Chapters) != 0 {
		t.Fatalf("expected empty chapter list after delete, got %+v", sr)
	}
}
