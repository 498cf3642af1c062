package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/fiction-portal/internal/platform/api"
	"github.com/example/fiction-portal/internal/platform/httpserver"
	"github.com/example/fiction-portal/services/portal/internal/catalog"
	"github.com/example/fiction-portal/services/portal/internal/gateway"
)

// Admin mutations go through the cache so every write, accepted or not,
// drops the entry and the next read is authoritative.

type adminChapterRequest struct {
	Title      string `json:"title"`
	Kind       string `json:"kind"`
	Link       string `json:"link"`
	Body       string `json:"body"`
	CreditName string `json:"credit_name"`
	CreditLink string `json:"credit_link"`
}

// AdminCreateSeries handles POST /v1/admin/series
func AdminCreateSeries(c *catalog.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req gateway.SeriesInput
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			api.BadRequest(w, "MISSING_TITLE", "title must not be empty", rid, nil)
			return
		}

		created, err := c.AddSeries(r.Context(), req)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// AdminDeleteSeries handles DELETE /v1/admin/series/{series_id}
func AdminDeleteSeries(c *catalog.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "series_id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "series_id is required", rid, nil)
			return
		}
		if err := c.DeleteSeries(r.Context(), id); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminAddChapter handles POST /v1/admin/series/{series_id}/chapters
func AdminAddChapter(c *catalog.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		seriesID := strings.TrimSpace(chi.URLParam(r, "series_id"))
		if seriesID == "" {
			api.BadRequest(w, "MISSING_ID", "series_id is required", rid, nil)
			return
		}

		var req adminChapterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			api.BadRequest(w, "MISSING_TITLE", "title must not be empty", rid, nil)
			return
		}

		created, err := c.AddChapter(r.Context(), seriesID, gateway.ChapterInput{
			Title:      strings.TrimSpace(req.Title),
			Kind:       req.Kind,
			Link:       strings.TrimSpace(req.Link),
			Body:       req.Body,
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

// AdminDeleteChapter handles DELETE /v1/admin/series/{series_id}/chapters/{chapter_id}
func AdminDeleteChapter(c *catalog.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		seriesID := strings.TrimSpace(chi.URLParam(r, "series_id"))
		chapterID := strings.TrimSpace(chi.URLParam(r, "chapter_id"))
		if seriesID == "" || chapterID == "" {
			api.BadRequest(w, "MISSING_ID", "series_id and chapter_id are required", rid, nil)
			return
		}
		if err := c.DeleteChapter(r.Context(), seriesID, chapterID); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminPatchChapter handles PATCH /v1/admin/series/{series_id}/chapters/{chapter_id}
func AdminPatchChapter(c *catalog.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		seriesID := strings.TrimSpace(chi.URLParam(r, "series_id"))
		chapterID := strings.TrimSpace(chi.URLParam(r, "chapter_id"))
		if seriesID == "" || chapterID == "" {
			api.BadRequest(w, "MISSING_ID", "series_id and chapter_id are required", rid, nil)
			return
		}

		var patch gateway.ChapterPatch
		if err := decodeJSON(w, r, &patch); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}

		updated, err := c.UpdateChapter(r.Context(), seriesID, chapterID, patch)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, updated)
	}
}
