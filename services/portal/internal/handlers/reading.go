package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/fiction-portal/internal/platform/analytics"
	"github.com/example/fiction-portal/internal/platform/api"
	"github.com/example/fiction-portal/internal/platform/auth"
	"github.com/example/fiction-portal/internal/platform/httpserver"
	"github.com/example/fiction-portal/services/portal/internal/catalog"
	"github.com/example/fiction-portal/services/portal/internal/gateway"
	"github.com/example/fiction-portal/services/portal/internal/readingstate"
)

type ensureMeRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoUrl"`
}

type recordHistoryRequest struct {
	SeriesID  string `json:"seriesId"`
	ChapterID string `json:"chapterId"`
}

type updateProgressRequest struct {
	Percent int `json:"percent"`
}

type setThemeRequest struct {
	Theme string `json:"theme"`
}

type toggleBookmarkResponse struct {
	SeriesID   string `json:"seriesId"`
	Bookmarked bool   `json:"bookmarked"`
}

type bookmarksResponse struct {
	Series []gateway.Series `json:"series"`
}

type historyResponse struct {
	History []gateway.HistoryEntry `json:"history"`
}

type progressResponse struct {
	ChapterID string `json:"chapterId"`
	Percent   int    `json:"percent"`
}

type continueResponse struct {
	Items []readingstate.ProgressItem `json:"items"`
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	rid := httpserver.RequestIDFromContext(r.Context())
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
		return "", rid, false
	}
	return userID, rid, true
}

// EnsureMe handles PUT /v1/me. Called on every sign-in; creates the profile
// document the first time and refreshes lastLogin afterwards.
func EnsureMe(rs *readingstate.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, rid, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req ensureMeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}

		p, err := rs.EnsureProfile(r.Context(), userID, gateway.ProfileSeed{
			DisplayName: req.DisplayName,
			Email:       req.Email,
			PhotoURL:    req.PhotoURL,
		})
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, p)
	}
}

// GetMe handles GET /v1/me
func GetMe(rs *readingstate.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, rid, ok := requireUser(w, r)
		if !ok {
			return
		}
		p, err := rs.Profile(r.Context(), userID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, p)
	}
}

// ToggleBookmark handles POST /v1/me/bookmarks/{series_id}/toggle
func ToggleBookmark(rs *readingstate.Service, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, rid, ok := requireUser(w, r)
		if !ok {
			return
		}
		seriesID := strings.TrimSpace(chi.URLParam(r, "series_id"))
		if seriesID == "" {
			api.BadRequest(w, "MISSING_ID", "series_id is required", rid, nil)
			return
		}

		bookmarked, err := rs.ToggleBookmark(r.Context(), userID, seriesID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		events.Publish(analytics.SubjectBookmarkToggled, "bookmark_toggled", userID, map[string]any{
			"series_id":  seriesID,
			"bookmarked": bookmarked,
		})
		api.WriteJSON(w, http.StatusOK, toggleBookmarkResponse{SeriesID: seriesID, Bookmarked: bookmarked})
	}
}

// ListBookmarks handles GET /v1/me/bookmarks. Bookmarked ids are resolved
// against the cached catalog; stale ids are skipped, not errored.
func ListBookmarks(rs *readingstate.Service, c *catalog.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, rid, ok := requireUser(w, r)
		if !ok {
			return
		}
		p, err := rs.Profile(r.Context(), userID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		series := readingstate.BookmarkedSeries(p, c.GetAll(r.Context()))
		api.WriteJSON(w, http.StatusOK, bookmarksResponse{Series: series})
	}
}

// RecordHistory handles POST /v1/me/history
func RecordHistory(rs *readingstate.Service, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, rid, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req recordHistoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if strings.TrimSpace(req.SeriesID) == "" || strings.TrimSpace(req.ChapterID) == "" {
			api.BadRequest(w, "MISSING_ID", "seriesId and chapterId are required", rid, nil)
			return
		}

		if err := rs.RecordHistory(r.Context(), userID, req.SeriesID, req.ChapterID); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		events.Publish(analytics.SubjectChapterOpened, "chapter_opened", userID, map[string]any{
			"series_id":  req.SeriesID,
			"chapter_id": req.ChapterID,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetHistory handles GET /v1/me/history
func GetHistory(rs *readingstate.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, rid, ok := requireUser(w, r)
		if !ok {
			return
		}
		p, err := rs.Profile(r.Context(), userID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, historyResponse{History: p.ReadingHistory})
	}
}

// UpdateProgress handles PUT /v1/me/progress/{chapter_id}
func UpdateProgress(rs *readingstate.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, rid, ok := requireUser(w, r)
		if !ok {
			return
		}
		chapterID := strings.TrimSpace(chi.URLParam(r, "chapter_id"))
		if chapterID == "" {
			api.BadRequest(w, "MISSING_ID", "chapter_id is required", rid, nil)
			return
		}

		var req updateProgressRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}

		persisted, err := rs.UpdateProgress(r.Context(), userID, chapterID, req.Percent)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, progressResponse{ChapterID: chapterID, Percent: persisted})
	}
}

// ContinueReading handles GET /v1/me/continue
func ContinueReading(rs *readingstate.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, rid, ok := requireUser(w, r)
		if !ok {
			return
		}
		p, err := rs.Profile(r.Context(), userID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, continueResponse{Items: readingstate.ContinueReading(p)})
	}
}

// SetTheme handles PUT /v1/me/theme
func SetTheme(rs *readingstate.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, rid, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req setThemeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if strings.TrimSpace(req.Theme) == "" {
			api.BadRequest(w, "MISSING_THEME", "theme must not be empty", rid, nil)
			return
		}

		if err := rs.SetPreferredTheme(r.Context(), userID, req.Theme); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
