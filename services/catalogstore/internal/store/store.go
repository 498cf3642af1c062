package store

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ChapterKind distinguishes text stories from audio chapters.
type ChapterKind string

const (
	KindStory ChapterKind = "story"
	KindAudio ChapterKind = "audio"
)

// Valid reports whether k is a known chapter kind.
func (k ChapterKind) Valid() bool {
	return k == KindStory || k == KindAudio
}

// Chapter is one story or audio unit within a series. Its position in the
// parent's chapter list is the canonical reading order; timestamps and titles
// never define order.
type Chapter struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Kind       ChapterKind `json:"kind"`
	Link       string      `json:"link,omitempty"`
	Body       string      `json:"body,omitempty"`
	CreditName string      `json:"credit_name,omitempty"`
	CreditLink string      `json:"credit_link,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Series is a titled collection of ordered chapters. The id is the slug of
// the title and doubles as the document key.
type Series struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Image       string    `json:"image,omitempty"`
	Chapters    []Chapter `json:"chapters"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryEntry records one chapter opening. Field names follow the persisted
// profile document schema.
type HistoryEntry struct {
	SeriesID  string    `json:"seriesId"`
	ChapterID string    `json:"chapterId"`
	Timestamp time.Time `json:"timestamp"`
}

// UserProfile is the per-user reading-state document, created on first
// sign-in. The JSON shape is the legacy document-store schema and must not
// change without a data migration.
type UserProfile struct {
	UserID          string         `json:"userId"`
	DisplayName     string         `json:"displayName,omitempty"`
	Email           string         `json:"email,omitempty"`
	PhotoURL        string         `json:"photoUrl,omitempty"`
	PreferredTheme  string         `json:"preferredTheme,omitempty"`
	Bookmarks       []string       `json:"bookmarks"`
	ReadingHistory  []HistoryEntry `json:"readingHistory"`
	ReadingProgress map[string]int `json:"readingProgress"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastLogin       time.Time      `json:"lastLogin"`
}

// ChapterInput carries the fields of a new chapter.
type ChapterInput struct {
	Title      string
	Kind       ChapterKind
	Link       string
	Body       string
	CreditName string
	CreditLink string
}

// ChapterPatch updates a subset of chapter fields; nil means leave unchanged.
type ChapterPatch struct {
	Title      *string
	Kind       *ChapterKind
	Link       *string
	Body       *string
	CreditName *string
	CreditLink *string
}

// ProfileSeed carries identity-provider fields applied on first sign-in.
type ProfileSeed struct {
	DisplayName string
	Email       string
	PhotoURL    string
}

// ProfilePatch replaces whole profile fields; nil means leave unchanged.
// Replacement is field-whole so each write stays single-document atomic.
type ProfilePatch struct {
	Bookmarks       *[]string
	ReadingHistory  *[]HistoryEntry
	ReadingProgress *map[string]int
	PreferredTheme  *string
}

// CatalogStore defines all persistence operations for series and chapters.
type CatalogStore interface {
	ListSeries(ctx context.Context) ([]Series, error)
	GetSeries(ctx context.Context, id string) (Series, error)
	CreateSeries(ctx context.Context, title, description, icon, image string) (Series, error)
	DeleteSeries(ctx context.Context, id string) error
	AppendChapter(ctx context.Context, seriesID string, in ChapterInput) (Chapter, error)
	RemoveChapter(ctx context.Context, seriesID, chapterID string) error
	PatchChapter(ctx context.Context, seriesID, chapterID string, patch ChapterPatch) (Chapter, error)
}

// ProfileStore defines persistence operations for user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	// EnsureProfile creates the profile on first sign-in and touches
	// lastLogin on every later call.
	EnsureProfile(ctx context.Context, userID string, seed ProfileSeed) (UserProfile, error)
	PatchProfile(ctx context.Context, userID string, patch ProfilePatch) (UserProfile, error)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a document key from a title: lowercase, runs of
// non-alphanumerics collapsed to single dashes, edges trimmed.
func Slugify(title string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// NewChapterID builds a chapter id unique within its series: the title slug
// plus a creation-time disambiguator so repeated titles stay distinct.
func NewChapterID(title string, now time.Time) string {
	return Slugify(title) + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// NewProfile is the empty reading-state document written on first sign-in.
func NewProfile(userID string, seed ProfileSeed, now time.Time) UserProfile {
	return UserProfile{
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
}

func applyChapterPatch(c Chapter, patch ChapterPatch) Chapter {
	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if patch.Kind != nil {
		c.Kind = *patch.Kind
	}
	if patch.Link != nil {
		c.Link = *patch.Link
	}
	if patch.Body != nil {
		c.Body = *patch.Body
	}
	if patch.CreditName != nil {
		c.CreditName = *patch.CreditName
	}
	if patch.CreditLink != nil {
		c.CreditLink = *patch.CreditLink
	}
	return c
}

func applyProfilePatch(p UserProfile, patch ProfilePatch) UserProfile {
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
	return p
}
