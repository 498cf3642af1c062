// Package gateway is the portal's client for the catalog document store. It
// defines the wire types shared with the store service and the Gateway
// interface the cache and reading-state layers depend on.
package gateway

import (
	"context"
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

// Chapter is one story or audio unit. Slice position within the parent series
// is the canonical reading order.
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

// Series is a titled, ordered collection of chapters.
type Series struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Image       string    `json:"image,omitempty"`
	Chapters    []Chapter `json:"chapters"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryEntry records one chapter opening. JSON names follow the persisted
// profile document schema.
type HistoryEntry struct {
	SeriesID  string    `json:"seriesId"`
	ChapterID string    `json:"chapterId"`
	Timestamp time.Time `json:"timestamp"`
}

// UserProfile is the per-user reading-state document.
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
	Title      string `json:"title"`
	Kind       string `json:"kind"`
	Link       string `json:"link,omitempty"`
	Body       string `json:"body,omitempty"`
	CreditName string `json:"credit_name,omitempty"`
	CreditLink string `json:"credit_link,omitempty"`
}

// SeriesInput carries the fields of a new series.
type SeriesInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Image       string `json:"image,omitempty"`
}

// ChapterPatch updates a subset of chapter fields; nil leaves a field as-is.
type ChapterPatch struct {
	Title      *string `json:"title,omitempty"`
	Kind       *string `json:"kind,omitempty"`
	Link       *string `json:"link,omitempty"`
	Body       *string `json:"body,omitempty"`
	CreditName *string `json:"credit_name,omitempty"`
	CreditLink *string `json:"credit_link,omitempty"`
}

// ProfileSeed carries identity-provider fields sent on session start.
type ProfileSeed struct {
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// ProfilePatch replaces whole profile fields; nil leaves a field as-is.
type ProfilePatch struct {
	Bookmarks       *[]string       `json:"bookmarks,omitempty"`
	ReadingHistory  *[]HistoryEntry `json:"readingHistory,omitempty"`
	ReadingProgress *map[string]int `json:"readingProgress,omitempty"`
	PreferredTheme  *string         `json:"preferredTheme,omitempty"`
}

// Gateway is the document-store surface the portal consumes. Implementations
// return codes.NotFound / codes.InvalidArgument status errors the way the
// store service does.
type Gateway interface {
	ListSeries(ctx context.Context) ([]Series, error)
	GetSeries(ctx context.Context, id string) (Series, error)
	CreateSeries(ctx context.Context, in SeriesInput) (Series, error)
	DeleteSeries(ctx context.Context, id string) error
	AppendChapter(ctx context.Context, seriesID string, in ChapterInput) (Chapter, error)
	RemoveChapter(ctx context.Context, seriesID, chapterID string) error
	PatchChapter(ctx context.Context, seriesID, chapterID string, patch ChapterPatch) (Chapter, error)

	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	EnsureProfile(ctx context.Context, userID string, seed ProfileSeed) (UserProfile, error)
	PatchProfile(ctx context.Context, userID string, patch ProfilePatch) (UserProfile, error)
}
