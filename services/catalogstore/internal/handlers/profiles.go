package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/fiction-portal/internal/platform/api"
	"github.com/example/fiction-portal/internal/platform/httpserver"
	"github.com/example/fiction-portal/services/catalogstore/internal/store"
)

type ensureProfileRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoUrl"`
}

type patchProfileRequest struct {
	Bookmarks       *[]string             `json:"bookmarks"`
	ReadingHistory  *[]store.HistoryEntry `json:"readingHistory"`
	ReadingProgress *map[string]int       `json:"readingProgress"`
	PreferredTheme  *string               `json:"preferredTheme"`
}

// GetProfile handles GET /v1/profiles/{user_id}
func GetProfile(ps store.ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
		if userID == "" {
			api.BadRequest(w, "MISSING_ID", "user_id is required", rid, nil)
			return
		}
		p, err := ps.GetProfile(r.Context(), userID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, p)
	}
}

// EnsureProfile handles PUT /v1/profiles/{user_id}. It creates the profile on
// first sign-in and refreshes lastLogin afterwards, so the portal calls it on
// every session start.
func EnsureProfile(ps store.ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
		if userID == "" {
			api.BadRequest(w, "MISSING_ID", "user_id is required", rid, nil)
			return
		}

		var req ensureProfileRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}

		p, err := ps.EnsureProfile(r.Context(), userID, store.ProfileSeed{
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

// PatchProfile handles PATCH /v1/profiles/{user_id}
func PatchProfile(ps store.ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
		if userID == "" {
			api.BadRequest(w, "MISSING_ID", "user_id is required", rid, nil)
			return
		}

		var req patchProfileRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}

		p, err := ps.PatchProfile(r.Context(), userID, store.ProfilePatch{
			Bookmarks:       req.Bookmarks,
			ReadingHistory:  req.ReadingHistory,
			ReadingProgress: req.ReadingProgress,
			PreferredTheme:  req.PreferredTheme,
		})
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, p)
	}
}
