// Package readingstate keeps per-user bookmarks, reading history and chapter
// progress in sync with the profile document store. Every mutation is a
// whole-field read-modify-write so the stored document is always internally
// consistent (last write wins across devices).
package readingstate

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/fiction-portal/services/portal/internal/gateway"
)

// HistoryLimit caps reading history at the most recent entries.
const HistoryLimit = 50

// Service applies reading-state mutations through the profile gateway.
type Service struct {
	gw  gateway.Gateway
	log *zap.Logger
	now func() time.Time
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(gw gateway.Gateway, opts ...Option) *Service {
	s := &Service{gw: gw, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Profile fetches the user's reading-state document.
func (s *Service) Profile(ctx context.Context, userID string) (gateway.UserProfile, error) {
	return s.gw.GetProfile(ctx, userID)
}

// EnsureProfile creates the document on first sign-in and refreshes lastLogin
// on every later call.
func (s *Service) EnsureProfile(ctx context.Context, userID string, seed gateway.ProfileSeed) (gateway.UserProfile, error) {
	return s.gw.EnsureProfile(ctx, userID, seed)
}

// ToggleBookmark flips the bookmark for seriesID and reports the new state.
// Applying it twice restores the original bookmark set.
func (s *Service) ToggleBookmark(ctx context.Context, userID, seriesID string) (bool, error) {
	p, err := s.gw.GetProfile(ctx, userID)
	if err != nil {
		return false, err
	}

	bookmarked := false
	next := make([]string, 0, len(p.Bookmarks)+1)
	for _, id := range p.Bookmarks {
		if id == seriesID {
			bookmarked = true
			continue
		}
		next = append(next, id)
	}
	if !bookmarked {
		next = append(next, seriesID)
	}

	if _, err := s.gw.PatchProfile(ctx, userID, gateway.ProfilePatch{Bookmarks: &next}); err != nil {
		return false, err
	}
	return !bookmarked, nil
}

// RecordHistory notes that the user opened a chapter. Re-reading a chapter
// moves its entry to the front instead of duplicating it; the list is capped
// at HistoryLimit, most recent first.
func (s *Service) RecordHistory(ctx context.Context, userID, seriesID, chapterID string) error {
	p, err := s.gw.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	next := make([]gateway.HistoryEntry, 0, len(p.ReadingHistory)+1)
	next = append(next, gateway.HistoryEntry{
		SeriesID:  seriesID,
		ChapterID: chapterID,
		Timestamp: s.now().UTC(),
	})
	for _, h := range p.ReadingHistory {
		if h.ChapterID == chapterID {
			continue
		}
		next = append(next, h)
	}
	if len(next) > HistoryLimit {
		next = next[:HistoryLimit]
	}

	_, err = s.gw.PatchProfile(ctx, userID, gateway.ProfilePatch{ReadingHistory: &next})
	return err
}

// UpdateProgress stores the quantized completion percentage for a chapter and
// returns the value actually persisted.
func (s *Service) UpdateProgress(ctx context.Context, userID, chapterID string, rawPercent int) (int, error) {
	p, err := s.gw.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}

	progress := make(map[string]int, len(p.ReadingProgress)+1)
	for k, v := range p.ReadingProgress {
		progress[k] = v
	}
	q := Quantize(rawPercent)
	progress[chapterID] = q

	if _, err := s.gw.PatchProfile(ctx, userID, gateway.ProfilePatch{ReadingProgress: &progress}); err != nil {
		return 0, err
	}
	return q, nil
}

// SetPreferredTheme stores the user's theme choice.
func (s *Service) SetPreferredTheme(ctx context.Context, userID, theme string) error {
	_, err := s.gw.PatchProfile(ctx, userID, gateway.ProfilePatch{PreferredTheme: &theme})
	return err
}

// Quantize snaps a raw percentage to the nearest multiple of ten and clamps
// it to 0..100, so progress bars move in stable steps: 57 becomes 60, 4
// becomes 0.
func Quantize(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return ((percent + 5) / 10) * 10
}

// ProgressItem is one in-flight chapter for the continue-reading rail.
type ProgressItem struct {
	ChapterID string `json:"chapterId"`
	Percent   int    `json:"percent"`
}

// ContinueReading lists chapters the user has started but not finished,
// most-complete first. Pure function over the profile document.
func ContinueReading(p gateway.UserProfile) []ProgressItem {
	items := make([]ProgressItem, 0, len(p.ReadingProgress))
	for chapterID, percent := range p.ReadingProgress {
		if percent <= 0 || percent >= 100 {
			continue
		}
		items = append(items, ProgressItem{ChapterID: chapterID, Percent: percent})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Percent != items[j].Percent {
			return items[i].Percent > items[j].Percent
		}
		return items[i].ChapterID < items[j].ChapterID
	})
	return items
}

// BookmarkedSeries resolves the user's bookmarks against the catalog,
// preserving bookmark order and skipping ids that no longer exist.
func BookmarkedSeries(p gateway.UserProfile, catalog []gateway.Series) []gateway.Series {
	byID := make(map[string]gateway.Series, len(catalog))
	for _, sr := range catalog {
		byID[sr.ID] = sr
	}
	out := make([]gateway.Series, 0, len(p.Bookmarks))
	for _, id := range p.Bookmarks {
		if sr, ok := byID[id]; ok {
			out = append(out, sr)
		}
	}
	return out
}
