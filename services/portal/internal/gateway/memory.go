package gateway

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Memory is an in-process Gateway for development and tests. It mirrors the
// store service's semantics: slug ids, append-order chapters, profile
// documents created on first sign-in.
type Memory struct {
	mu       sync.RWMutex
	series   map[string]*Series
	profiles map[string]*UserProfile

	lastChapterAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		series:   make(map[string]*Series),
		profiles: make(map[string]*UserProfile),
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a series id from its title: lowercase, runs of
// non-alphanumerics collapsed to single dashes, edges trimmed.
func Slugify(title string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

func (m *Memory) ListSeries(_ context.Context) ([]Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Series, 0, len(m.series))
	for _, sr := range m.series {
		out = append(out, cloneSeries(*sr))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetSeries(_ context.Context, id string) (Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sr, ok := m.series[id]
	if !ok {
		return Series{}, status.Error(codes.NotFound, "series not found")
	}
	return cloneSeries(*sr), nil
}

func (m *Memory) CreateSeries(_ context.Context, in SeriesInput) (Series, error) {
	id := Slugify(in.Title)
	if id == "" {
		return Series{}, status.Error(codes.InvalidArgument, "title yields empty id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.series[id]; exists {
		return Series{}, status.Error(codes.AlreadyExists, "series already exists")
	}
	sr := Series{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Icon:        in.Icon,
		Image:       in.Image,
		Chapters:    []Chapter{},
		CreatedAt:   time.Now().UTC(),
	}
	m.series[id] = &sr
	return cloneSeries(sr), nil
}

func (m *Memory) DeleteSeries(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.series[id]; !ok {
		return status.Error(codes.NotFound, "series not found")
	}
	delete(m.series, id)
	return nil
}

func (m *Memory) AppendChapter(_ context.Context, seriesID string, in ChapterInput) (Chapter, error) {
	kind := ChapterKind(in.Kind)
	if !kind.Valid() {
		return Chapter{}, status.Error(codes.InvalidArgument, "unknown chapter kind")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sr, ok := m.series[seriesID]
	if !ok {
		return Chapter{}, status.Error(codes.NotFound, "series not found")
	}

	now := time.Now().UTC()
	if !now.After(m.lastChapterAt) {
		now = m.lastChapterAt.Add(time.Millisecond)
	}
	m.lastChapterAt = now

	ch := Chapter{
		ID:         Slugify(in.Title) + "-" + strconv.FormatInt(now.UnixMilli(), 10),
		Title:      in.Title,
		Kind:       kind,
		Link:       in.Link,
		Body:       in.Body,
		CreditName: in.CreditName,
		CreditLink: in.CreditLink,
		CreatedAt:  now,
	}
	sr.Chapters = append(sr.Chapters, ch)
	return ch, nil
}

func (m *Memory) RemoveChapter(_ context.Context, seriesID, chapterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sr, ok := m.series[seriesID]
	if !ok {
		return status.Error(codes.NotFound, "series not found")
	}
	for i, ch := range sr.Chapters {
		if ch.ID == chapterID {
			sr.Chapters = append(sr.Chapters[:i], sr.Chapters[i+1:]...)
			return nil
		}
	}
	return status.Error(codes.NotFound, "chapter not found")
}

func (m *Memory) PatchChapter(_ context.Context, seriesID, chapterID string, patch ChapterPatch) (Chapter, error) {
	if patch.Kind != nil && !ChapterKind(*patch.Kind).Valid() {
		return Chapter{}, status.Error(codes.InvalidArgument, "unknown chapter kind")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sr, ok := m.series[seriesID]
	if !ok {
		return Chapter{}, status.Error(codes.NotFound, "series not found")
	}
	for i, ch := range sr.Chapters {
		if ch.ID != chapterID {
			continue
		}
		if patch.Title != nil {
			ch.Title = *patch.Title
		}
		if patch.Kind != nil {
			ch.Kind = ChapterKind(*patch.Kind)
		}
		if patch.Link != nil {
			ch.Link = *patch.Link
		}
		if patch.Body != nil {
			ch.Body = *patch.Body
		}
		if patch.CreditName != nil {
			ch.CreditName = *patch.CreditName
		}
		if patch.CreditLink != nil {
			ch.CreditLink = *patch.CreditLink
		}
		sr.Chapters[i] = ch
		return ch, nil
	}
	return Chapter{}, status.Error(codes.NotFound, "chapter not found")
}

func (m *Memory) GetProfile(_ context.Context, userID string) (UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return UserProfile{}, status.Error(codes.NotFound, "profile not found")
	}
	return cloneProfile(*p), nil
}

func (m *Memory) EnsureProfile(_ context.Context, userID string, seed ProfileSeed) (UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if p, ok := m.profiles[userID]; ok {
		p.LastLogin = now
		return cloneProfile(*p), nil
	}
	p := UserProfile{
		UserID:          userID,
		DisplayName:     seed.DisplayName,
		Email:           seed.Email,
		PhotoURL:        seed.PhotoURL,
		PreferredTheme:  "night",
		Bookmarks:       []string{},
		ReadingHistory:  []HistoryEntry{},
		ReadingProgress: map[string]int{},
		CreatedAt:       now,
		LastLogin:       now,
	}
	m.profiles[userID] = &p
	return cloneProfile(p), nil
}

func (m *Memory) PatchProfile(_ context.Context, userID string, patch ProfilePatch) (UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return UserProfile{}, status.Error(codes.NotFound, "profile not found")
	}
	if patch.Bookmarks != nil {
		p.Bookmarks = *patch.Bookmarks
	}
	if patch.ReadingHistory != nil {
		p.ReadingHistory = *patch.ReadingHistory
	}
	if patch.ReadingProgress != nil {
		p.ReadingProgress = *patch.ReadingProgress
	}
	if patch.PreferredTheme != nil {
		p.PreferredTheme = *patch.PreferredTheme
	}
	return cloneProfile(*p), nil
}

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
