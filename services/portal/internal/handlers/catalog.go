package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/fiction-portal/internal/platform/analytics"
	"github.com/example/fiction-portal/internal/platform/api"
	"github.com/example/fiction-portal/internal/platform/auth"
	"github.com/example/fiction-portal/internal/platform/httpserver"
	"github.com/example/fiction-portal/internal/platform/metrics"
	"github.com/example/fiction-portal/internal/platform/signing"
	"github.com/example/fiction-portal/services/portal/internal/audiosource"
	"github.com/example/fiction-portal/services/portal/internal/catalog"
	"github.com/example/fiction-portal/services/portal/internal/gateway"
)

// playbackTTL bounds how long a signed playback URL stays valid.
const playbackTTL = 15 * time.Minute

type catalogResponse struct {
	Series []gateway.Series `json:"series"`
}

// GetCatalog handles GET /v1/catalog. Authoritative read: refetches when the
// cache has gone stale, degrades to the default collection when the store is
// empty or down.
func GetCatalog(c *catalog.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, catalogResponse{Series: c.GetAll(r.Context())})
	}
}

// GetCatalogSnapshot handles GET /v1/catalog/snapshot. First-paint read:
// serves the last cached collection regardless of age, never blocks on the
// store.
func GetCatalogSnapshot(c *catalog.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, catalogResponse{Series: c.GetAllSync()})
	}
}

// GetSeries handles GET /v1/series/{series_id}
func GetSeries(c *catalog.Cache, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "series_id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "series_id is required", rid, nil)
			return
		}

		sr, ok := c.GetByID(r.Context(), id)
		if !ok {
			api.NotFound(w, "NOT_FOUND", "series not found", rid)
			return
		}

		userID, _ := auth.UserIDFromContext(r.Context())
		events.Publish(analytics.SubjectSeriesViewed, "series_viewed", userID, map[string]any{
			"series_id": sr.ID,
		})
		api.WriteJSON(w, http.StatusOK, sr)
	}
}

type sourceResponse struct {
	ChapterID string `json:"chapter_id"`
	Kind      string `json:"kind"`

	// Story chapters: inline body, or an embeddable document URL.
	Body        string `json:"body,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`

	// Audio chapters: the resolved source plus a signed playback URL.
	Source  *audiosource.Source `json:"source,omitempty"`
	PlayURL string              `json:"play_url,omitempty"`
}

// GetChapterSource handles GET /v1/series/{series_id}/chapters/{chapter_id}/source.
// Audio links are classified into a playback plan and wrapped in a short-lived
// signed URL; story links are rewritten for embedded reading.
func GetChapterSource(c *catalog.Cache, signer *signing.Signer, m *metrics.Collector, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}

		seriesID := strings.TrimSpace(chi.URLParam(r, "series_id"))
		chapterID := strings.TrimSpace(chi.URLParam(r, "chapter_id"))
		if seriesID == "" || chapterID == "" {
			api.BadRequest(w, "MISSING_ID", "series_id and chapter_id are required", rid, nil)
			return
		}

		sr, found := c.GetByID(r.Context(), seriesID)
		if !found {
			api.NotFound(w, "NOT_FOUND", "series not found", rid)
			return
		}
		var ch *gateway.Chapter
		for i := range sr.Chapters {
			if sr.Chapters[i].ID == chapterID {
				ch = &sr.Chapters[i]
				break
			}
		}
		if ch == nil {
			api.NotFound(w, "NOT_FOUND", "chapter not found", rid)
			return
		}

		resp := sourceResponse{ChapterID: ch.ID, Kind: string(ch.Kind)}
		switch ch.Kind {
		case gateway.KindAudio:
			src := audiosource.Resolve(ch.Link)
			resp.Source = &src
			outcome := "direct"
			if src.ThirdPartyHost {
				outcome = "third_party"
			}
			if src.PlayableURL != "" {
				signed := signer.Sign(src.PlayableURL, userID, time.Now().Add(playbackTTL))
				playURL, err := signing.BuildSignedURL("/v1/play", signed)
				if err != nil {
					api.Internal(w, rid)
					return
				}
				resp.PlayURL = playURL
			} else {
				outcome = "no_source"
			}
			if m != nil {
				m.PlaybackResolved(outcome)
			}
			events.Publish(analytics.SubjectPlaybackResolved, "playback_resolved", userID, map[string]any{
				"series_id":  seriesID,
				"chapter_id": chapterID,
				"outcome":    outcome,
			})
		default:
			if ch.Body != "" {
				resp.Body = ch.Body
			} else if ch.Link != "" {
				resp.DocumentURL = audiosource.DocumentEmbedURL(ch.Link)
			}
		}

		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// Play handles GET /v1/play. It verifies the HMAC-signed parameters minted by
// GetChapterSource and redirects the media element to the real source.
func Play(signer *signing.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		rawURL, uid, exp, sig, err := signing.ExtractSigned(r.URL.Query())
		if err != nil {
			api.BadRequest(w, "INVALID_SIGNATURE", "missing or malformed signed params", rid, nil)
			return
		}
		if !signer.Verify(rawURL, uid, exp, sig) {
			api.Forbidden(w, "INVALID_SIGNATURE", "signature invalid or expired", rid)
			return
		}
		http.Redirect(w, r, rawURL, http.StatusFound)
	}
}
