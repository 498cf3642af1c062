package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/fiction-portal/internal/platform/api"
	"github.com/example/fiction-portal/internal/platform/httpserver"
	"github.com/example/fiction-portal/services/catalogstore/internal/sanitize"
	"github.com/example/fiction-portal/services/catalogstore/internal/store"
)

type createSeriesRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Image       string `json:"image"`
}

type chapterRequest struct {
	Title      string `json:"title"`
	Kind       string `json:"kind"`
	Link       string `json:"link"`
	Body       string `json:"body"`
	CreditName string `json:"credit_name"`
	CreditLink string `json:"credit_link"`
}

type patchChapterRequest struct {
	Title      *string `json:"title"`
	Kind       *string `json:"kind"`
	Link       *string `json:"link"`
	Body       *string `json:"body"`
	CreditName *string `json:"credit_name"`
	CreditLink *string `json:"credit_link"`
}

type seriesListResponse struct {
	Series []store.Series `json:"series"`
}

// ListSeries handles GET /v1/series
func ListSeries(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		out, err := cs.ListSeries(r.Context())
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, seriesListResponse{Series: out})
	}
}

// GetSeries handles GET /v1/series/{series_id}
func GetSeries(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "series_id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "series_id is required", rid, nil)
			return
		}
		sr, err := cs.GetSeries(r.Context(), id)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, sr)
	}
}

// CreateSeries handles POST /v1/series
func CreateSeries(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req createSeriesRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			api.BadRequest(w, "MISSING_TITLE", "title must not be empty", rid, nil)
			return
		}

		created, err := cs.CreateSeries(r.Context(), strings.TrimSpace(req.Title), req.Description, req.Icon, req.Image)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// DeleteSeries handles DELETE /v1/series/{series_id}
func DeleteSeries(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "series_id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "series_id is required", rid, nil)
			return
		}
		if err := cs.DeleteSeries(r.Context(), id); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AppendChapter handles POST /v1/series/{series_id}/chapters
func AppendChapter(cs store.CatalogStore, policy *sanitize.StoryPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		seriesID := strings.TrimSpace(chi.URLParam(r, "series_id"))
		if seriesID == "" {
			api.BadRequest(w, "MISSING_ID", "series_id is required", rid, nil)
			return
		}

		var req chapterRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			api.BadRequest(w, "MISSING_TITLE", "title must not be empty", rid, nil)
			return
		}
		kind := store.ChapterKind(req.Kind)
		if !kind.Valid() {
			api.BadRequest(w, "INVALID_KIND", "kind must be story or audio", rid, nil)
			return
		}
		if kind == store.KindAudio && strings.TrimSpace(req.Link) == "" {
			api.BadRequest(w, "MISSING_LINK", "audio chapters require a link", rid, nil)
			return
		}

		created, err := cs.AppendChapter(r.Context(), seriesID, store.ChapterInput{
			Title:      strings.TrimSpace(req.Title),
			Kind:       kind,
			Link:       strings.TrimSpace(req.Link),
			Body:       policy.Sanitize(req.Body),
			CreditName: req.CreditName,
			CreditLink: req.CreditLink,
		})
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// RemoveChapter handles DELETE /v1/series/{series_id}/chapters/{chapter_id}
func RemoveChapter(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		seriesID := strings.TrimSpace(chi.URLParam(r, "series_id"))
		chapterID := strings.TrimSpace(chi.URLParam(r, "chapter_id"))
		if seriesID == "" || chapterID == "" {
			api.BadRequest(w, "MISSING_ID", "series_id and chapter_id are required", rid, nil)
			return
		}
		if err := cs.RemoveChapter(r.Context(), seriesID, chapterID); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PatchChapter handles PATCH /v1/series/{series_id}/chapters/{chapter_id}
func PatchChapter(cs store.CatalogStore, policy *sanitize.StoryPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		seriesID := strings.TrimSpace(chi.URLParam(r, "series_id"))
		chapterID := strings.TrimSpace(chi.URLParam(r, "chapter_id"))
		if seriesID == "" || chapterID == "" {
			api.BadRequest(w, "MISSING_ID", "series_id and chapter_id are required", rid, nil)
			return
		}

		var req patchChapterRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}

		patch := store.ChapterPatch{
			Title:      req.Title,
			Link:       req.Link,
			CreditName: req.CreditName,
			CreditLink: req.CreditLink,
		}
		if req.Kind != nil {
			kind := store.ChapterKind(*req.Kind)
			if !kind.Valid() {
				api.BadRequest(w, "INVALID_KIND", "kind must be story or audio", rid, nil)
				return
			}
			patch.Kind = &kind
		}
		if req.Body != nil {
			clean := policy.Sanitize(*req.Body)
			patch.Body = &clean
		}

		updated, err := cs.PatchChapter(r.Context(), seriesID, chapterID, patch)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, updated)
	}
}
