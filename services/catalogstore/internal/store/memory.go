package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InMemoryStore is a development and test implementation of both
// CatalogStore and ProfileStore.
type InMemoryStore struct {
	mu       sync.RWMutex
	series   map[string]*Series
	profiles map[string]*UserProfile

	// lastChapterAt forces distinct chapter-id disambiguators when two
	// chapters are appended within the same millisecond.
	lastChapterAt time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		series:   make(map[string]*Series),
		profiles: make(map[string]*UserProfile),
	}
}

// ─── CatalogStore ───────────────────────────────────────────────────────────

func (s *InMemoryStore) ListSeries(_ context.Context) ([]Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Series, 0, len(s.series))
	for _, sr := range s.series {
		out = append(out, cloneSeries(*sr))
	}
	// Newest first, matching the Postgres implementation.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) GetSeries(_ context.Context, id string) (Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[id]
	if !ok {
		return Series{}, status.Error(codes.NotFound, "series not found")
	}
	return cloneSeries(*sr), nil
}

func (s *InMemoryStore) CreateSeries(_ context.Context, title, description, icon, image string) (Series, error) {
	id := Slugify(title)
	if id == "" {
		return Series{}, status.Error(codes.InvalidArgument, "title yields empty id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.series[id]; exists {
		return Series{}, status.Error(codes.AlreadyExists, "series already exists")
	}
	sr := Series{
		ID:          id,
		Title:       title,
		Description: description,
		Icon:        icon,
		Image:       image,
		Chapters:    []Chapter{},
		CreatedAt:   time.Now().UTC(),
	}
	s.series[id] = &sr
	return cloneSeries(sr), nil
}

func (s *InMemoryStore) DeleteSeries(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[id]; !ok {
		return status.Error(codes.NotFound, "series not found")
	}
	delete(s.series, id)
	return nil
}

func (s *InMemoryStore) AppendChapter(_ context.Context, seriesID string, in ChapterInput) (Chapter, error) {
	if !in.Kind.Valid() {
		return Chapter{}, status.Error(codes.InvalidArgument, "unknown chapter kind")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[seriesID]
	if !ok {
		return Chapter{}, status.Error(codes.NotFound, "series not found")
	}

	now := time.Now().UTC()
	if !now.After(s.lastChapterAt) {
		now = s.lastChapterAt.Add(time.Millisecond)
	}
	s.lastChapterAt = now

	ch := Chapter{
		ID:         NewChapterID(in.Title, now),
		Title:      in.Title,
		Kind:       in.Kind,
		Link:       in.Link,
		Body:       in.Body,
		CreditName: in.CreditName,
		CreditLink: in.CreditLink,
		CreatedAt:  now,
	}
	sr.Chapters = append(sr.Chapters, ch)
	return ch, nil
}

func (s *InMemoryStore) RemoveChapter(_ context.Context, seriesID, chapterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[seriesID]
	if !ok {
		return status.Error(codes.NotFound, "series not found")
	}
	for i, ch := range sr.Chapters {
		if ch.ID == chapterID {
			// Survivors keep their relative order.
			sr.Chapters = append(sr.Chapters[:i], sr.Chapters[i+1:]...)
			return nil
		}
	}
	return status.Error(codes.NotFound, "chapter not found")
}

func (s *InMemoryStore) PatchChapter(_ context.Context, seriesID, chapterID string, patch ChapterPatch) (Chapter, error) {
	if patch.Kind != nil && !patch.Kind.Valid() {
		return Chapter{}, status.Error(codes.InvalidArgument, "unknown chapter kind")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[seriesID]
	if !ok {
		return Chapter{}, status.Error(codes.NotFound, "series not found")
	}
	for i, ch := range sr.Chapters {
		if ch.ID == chapterID {
			sr.Chapters[i] = applyChapterPatch(ch, patch)
			return sr.Chapters[i], nil
		}
	}
	return Chapter{}, status.Error(codes.NotFound, "chapter not found")
}

// ─── ProfileStore ───────────────────────────────────────────────────────────

func (s *InMemoryStore) GetProfile(_ context.Context, userID string) (UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return UserProfile{}, status.Error(codes.NotFound, "profile not found")
	}
	return cloneProfile(*p), nil
}

func (s *InMemoryStore) EnsureProfile(_ context.Context, userID string, seed ProfileSeed) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p, ok := s.profiles[userID]; ok {
		p.LastLogin = now
		return cloneProfile(*p), nil
	}
	p := NewProfile(userID, seed, now)
	s.profiles[userID] = &p
	return cloneProfile(p), nil
}

func (s *InMemoryStore) PatchProfile(_ context.Context, userID string, patch ProfilePatch) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return UserProfile{}, status.Error(codes.NotFound, "profile not found")
	}
	*p = applyProfilePatch(*p, patch)
	return cloneProfile(*p), nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func cloneSeries(sr Series) Series {
	chapters := make([]Chapter, len(sr.Chapters))
	copy(chapters, sr.Chapters)
	sr.Chapters = chapters
	return sr
}

func cloneProfile(p UserProfile) UserProfile {
	bookmarks := make([]string, len(p.Bookmarks))
	copy(bookmarks, p.Bookmarks)
	history := make([]HistoryEntry, len(p.ReadingHistory))
	copy(history, p.ReadingHistory)
	progress := make(map[string]int, len(p.ReadingProgress))
	for k, v := range p.ReadingProgress {
		progress[k] = v
	}
	p.Bookmarks = bookmarks
	p.ReadingHistory = history
	p.ReadingProgress = progress
	return p
}
