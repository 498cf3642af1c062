package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const eventCatalogChanged = "catalog.changed"

// PostgresStore is the production Postgres-backed implementation of
// CatalogStore and ProfileStore. Every catalog write appends an outbox row
// inside the same transaction; the outbox publisher drains them to NATS.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// ─── Catalog reads ──────────────────────────────────────────────────────────

func (s *PostgresStore) ListSeries(ctx context.Context) ([]Series, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, title, description, icon, COALESCE(image, ''), created_at
FROM series ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, status.Error(codes.Internal, "db query")
	}
	defer rows.Close()

	var out []Series
	index := make(map[string]int)
	for rows.Next() {
		var sr Series
		if err := rows.Scan(&sr.ID, &sr.Title, &sr.Description, &sr.Icon, &sr.Image, &sr.CreatedAt); err != nil {
			return nil, status.Error(codes.Internal, "db scan")
		}
		sr.Chapters = []Chapter{}
		index[sr.ID] = len(out)
		out = append(out, sr)
	}
	if len(out) == 0 {
		return out, nil
	}

	chRows, err := s.db.Query(ctx, `
SELECT series_id, id, title, kind, link, body, credit_name, credit_link, created_at
FROM chapters ORDER BY series_id, position ASC`)
	if err != nil {
		return nil, status.Error(codes.Internal, "db query")
	}
	defer chRows.Close()

	for chRows.Next() {
		var seriesID string
		var ch Chapter
		if err := chRows.Scan(&seriesID, &ch.ID, &ch.Title, &ch.Kind, &ch.Link, &ch.Body, &ch.CreditName, &ch.CreditLink, &ch.CreatedAt); err != nil {
			return nil, status.Error(codes.Internal, "db scan")
		}
		if i, ok := index[seriesID]; ok {
			out[i].Chapters = append(out[i].Chapters, ch)
		}
	}
	return out, nil
}

func (s *PostgresStore) GetSeries(ctx context.Context, id string) (Series, error) {
	var sr Series
	err := s.db.QueryRow(ctx, `
SELECT id, title, description, icon, COALESCE(image, ''), created_at
FROM series WHERE id=$1`, id).
		Scan(&sr.ID, &sr.Title, &sr.Description, &sr.Icon, &sr.Image, &sr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Series{}, status.Error(codes.NotFound, "series not found")
		}
		return Series{}, status.Error(codes.Internal, "db")
	}

	rows, err := s.db.Query(ctx, `
SELECT id, title, kind, link, body, credit_name, credit_link, created_at
FROM chapters WHERE series_id=$1 ORDER BY position ASC`, id)
	if err != nil {
		return Series{}, status.Error(codes.Internal, "db query")
	}
	defer rows.Close()

	sr.Chapters = []Chapter{}
	for rows.Next() {
		var ch Chapter
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Kind, &ch.Link, &ch.Body, &ch.CreditName, &ch.CreditLink, &ch.CreatedAt); err != nil {
			return Series{}, status.Error(codes.Internal, "db scan")
		}
		sr.Chapters = append(sr.Chapters, ch)
	}
	return sr, nil
}

// ─── Catalog writes ─────────────────────────────────────────────────────────

func (s *PostgresStore) CreateSeries(ctx context.Context, title, description, icon, image string) (Series, error) {
	id := Slugify(title)
	if id == "" {
		return Series{}, status.Error(codes.InvalidArgument, "title yields empty id")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Series{}, status.Error(codes.Internal, "db begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
INSERT INTO series (id, title, description, icon, image, created_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6)
ON CONFLICT (id) DO NOTHING`, id, title, description, icon, image, now)
	if err != nil {
		return Series{}, status.Error(codes.Internal, "db")
	}
	if ct.RowsAffected() == 0 {
		return Series{}, status.Error(codes.AlreadyExists, "series already exists")
	}

	if err := insertOutboxEvent(ctx, tx, id); err != nil {
		return Series{}, status.Error(codes.Internal, "db outbox")
	}
	if err := tx.Commit(ctx); err != nil {
		return Series{}, status.Error(codes.Internal, "db commit")
	}
	return Series{
		ID: id, Title: title, Description: description, Icon: icon, Image: image,
		Chapters: []Chapter{}, CreatedAt: now,
	}, nil
}

func (s *PostgresStore) DeleteSeries(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return status.Error(codes.Internal, "db begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `DELETE FROM series WHERE id=$1`, id)
	if err != nil {
		return status.Error(codes.Internal, "db")
	}
	if ct.RowsAffected() == 0 {
		return status.Error(codes.NotFound, "series not found")
	}
	if err := insertOutboxEvent(ctx, tx, id); err != nil {
		return status.Error(codes.Internal, "db outbox")
	}
	if err := tx.Commit(ctx); err != nil {
		return status.Error(codes.Internal, "db commit")
	}
	return nil
}

func (s *PostgresStore) AppendChapter(ctx context.Context, seriesID string, in ChapterInput) (Chapter, error) {
	if !in.Kind.Valid() {
		return Chapter{}, status.Error(codes.InvalidArgument, "unknown chapter kind")
	}
	now := time.Now().UTC()
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

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Chapter{}, status.Error(codes.Internal, "db begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// New chapters always land at the tail; deletions never renumber, so
	// max(position)+1 keeps insertion order stable.
	ct, err := tx.Exec(ctx, `
INSERT INTO chapters (series_id, id, title, kind, link, body, credit_name, credit_link, position, created_at)
SELECT $1, $2, $3, $4, $5, $6, $7, $8,
       COALESCE((SELECT MAX(position) FROM chapters WHERE series_id=$1), 0) + 1, $9
WHERE EXISTS (SELECT 1 FROM series WHERE id=$1)`,
		seriesID, ch.ID, ch.Title, ch.Kind, ch.Link, ch.Body, ch.CreditName, ch.CreditLink, now)
	if err != nil {
		return Chapter{}, status.Error(codes.Internal, "db")
	}
	if ct.RowsAffected() == 0 {
		return Chapter{}, status.Error(codes.NotFound, "series not found")
	}

	if err := insertOutboxEvent(ctx, tx, seriesID); err != nil {
		return Chapter{}, status.Error(codes.Internal, "db outbox")
	}
	if err := tx.Commit(ctx); err != nil {
		return Chapter{}, status.Error(codes.Internal, "db commit")
	}
	return ch, nil
}

func (s *PostgresStore) RemoveChapter(ctx context.Context, seriesID, chapterID string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return status.Error(codes.Internal, "db begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `DELETE FROM chapters WHERE series_id=$1 AND id=$2`, seriesID, chapterID)
	if err != nil {
		return status.Error(codes.Internal, "db")
	}
	if ct.RowsAffected() == 0 {
		return status.Error(codes.NotFound, "chapter not found")
	}
	if err := insertOutboxEvent(ctx, tx, seriesID); err != nil {
		return status.Error(codes.Internal, "db outbox")
	}
	if err := tx.Commit(ctx); err != nil {
		return status.Error(codes.Internal, "db commit")
	}
	return nil
}

func (s *PostgresStore) PatchChapter(ctx context.Context, seriesID, chapterID string, patch ChapterPatch) (Chapter, error) {
	if patch.Kind != nil && !patch.Kind.Valid() {
		return Chapter{}, status.Error(codes.InvalidArgument, "unknown chapter kind")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Chapter{}, status.Error(codes.Internal, "db begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ch Chapter
	err = tx.QueryRow(ctx, `
SELECT id, title, kind, link, body, credit_name, credit_link, created_at
FROM chapters WHERE series_id=$1 AND id=$2 FOR UPDATE`, seriesID, chapterID).
		Scan(&ch.ID, &ch.Title, &ch.Kind, &ch.Link, &ch.Body, &ch.CreditName, &ch.CreditLink, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Chapter{}, status.Error(codes.NotFound, "chapter not found")
		}
		return Chapter{}, status.Error(codes.Internal, "db")
	}

	ch = applyChapterPatch(ch, patch)
	if _, err := tx.Exec(ctx, `
UPDATE chapters SET title=$3, kind=$4, link=$5, body=$6, credit_name=$7, credit_link=$8
WHERE series_id=$1 AND id=$2`,
		seriesID, chapterID, ch.Title, ch.Kind, ch.Link, ch.Body, ch.CreditName, ch.CreditLink); err != nil {
		return Chapter{}, status.Error(codes.Internal, "db")
	}

	if err := insertOutboxEvent(ctx, tx, seriesID); err != nil {
		return Chapter{}, status.Error(codes.Internal, "db outbox")
	}
	if err := tx.Commit(ctx); err != nil {
		return Chapter{}, status.Error(codes.Internal, "db commit")
	}
	return ch, nil
}

// ─── Profiles ───────────────────────────────────────────────────────────────

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `SELECT doc FROM user_profiles WHERE user_id=$1`, userID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserProfile{}, status.Error(codes.NotFound, "profile not found")
		}
		return UserProfile{}, status.Error(codes.Internal, "db")
	}
	return decodeProfile(userID, doc)
}

func (s *PostgresStore) EnsureProfile(ctx context.Context, userID string, seed ProfileSeed) (UserProfile, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return UserProfile{}, status.Error(codes.Internal, "db begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doc []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM user_profiles WHERE user_id=$1 FOR UPDATE`, userID).Scan(&doc)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		p := NewProfile(userID, seed, now)
		b, err := json.Marshal(p)
		if err != nil {
			return UserProfile{}, status.Error(codes.Internal, "profile encode")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_profiles (user_id, doc, updated_at) VALUES ($1,$2,$3)`,
			userID, b, now); err != nil {
			return UserProfile{}, status.Error(codes.Internal, "db")
		}
		if err := tx.Commit(ctx); err != nil {
			return UserProfile{}, status.Error(codes.Internal, "db commit")
		}
		return p, nil
	case err != nil:
		return UserProfile{}, status.Error(codes.Internal, "db")
	}

	p, derr := decodeProfile(userID, doc)
	if derr != nil {
		return UserProfile{}, derr
	}
	p.LastLogin = now
	b, err := json.Marshal(p)
	if err != nil {
		return UserProfile{}, status.Error(codes.Internal, "profile encode")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE user_profiles SET doc=$2, updated_at=$3 WHERE user_id=$1`,
		userID, b, now); err != nil {
		return UserProfile{}, status.Error(codes.Internal, "db")
	}
	if err := tx.Commit(ctx); err != nil {
		return UserProfile{}, status.Error(codes.Internal, "db commit")
	}
	return p, nil
}

func (s *PostgresStore) PatchProfile(ctx context.Context, userID string, patch ProfilePatch) (UserProfile, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return UserProfile{}, status.Error(codes.Internal, "db begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doc []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM user_profiles WHERE user_id=$1 FOR UPDATE`, userID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserProfile{}, status.Error(codes.NotFound, "profile not found")
		}
		return UserProfile{}, status.Error(codes.Internal, "db")
	}

	p, derr := decodeProfile(userID, doc)
	if derr != nil {
		return UserProfile{}, derr
	}
	p = applyProfilePatch(p, patch)

	b, err := json.Marshal(p)
	if err != nil {
		return UserProfile{}, status.Error(codes.Internal, "profile encode")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE user_profiles SET doc=$2, updated_at=$3 WHERE user_id=$1`,
		userID, b, time.Now().UTC()); err != nil {
		return UserProfile{}, status.Error(codes.Internal, "db")
	}
	if err := tx.Commit(ctx); err != nil {
		return UserProfile{}, status.Error(codes.Internal, "db commit")
	}
	return p, nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func decodeProfile(userID string, doc []byte) (UserProfile, error) {
	var p UserProfile
	if err := json.Unmarshal(doc, &p); err != nil {
		return UserProfile{}, status.Error(codes.Internal, "profile decode")
	}
	p.UserID = userID
	if p.Bookmarks == nil {
		p.Bookmarks = []string{}
	}
	if p.ReadingHistory == nil {
		p.ReadingHistory = []HistoryEntry{}
	}
	if p.ReadingProgress == nil {
		p.ReadingProgress = map[string]int{}
	}
	return p, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, seriesID string) error {
	b, err := json.Marshal(map[string]any{"series_id": seriesID})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO catalog_outbox (id, event_type, payload) VALUES ($1,$2,$3)`,
		uuid.New(), eventCatalogChanged, b)
	return err
}
