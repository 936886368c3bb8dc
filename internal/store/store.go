// Package store persists form submissions and session drafts in sqlite.
// Submissions are stored as JSON; drafts are stored as BSON documents.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a submission or draft does not exist.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id         TEXT PRIMARY KEY,
	form       TEXT NOT NULL,
	session    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_form ON submissions(form, created_at);
CREATE TABLE IF NOT EXISTS drafts (
	session    TEXT PRIMARY KEY,
	form       TEXT NOT NULL,
	snapshot   BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// Submission is one accepted form payload.
type Submission struct {
	ID        string         `json:"id"`
	Form      string         `json:"form"`
	Session   string         `json:"session"`
	Values    map[string]any `json:"values"`
	CreatedAt time.Time      `json:"created_at"`
}

// Draft is the saved in-progress value map of a session.
type Draft struct {
	Session   string         `json:"session"`
	Form      string         `json:"form"`
	Values    map[string]any `json:"values"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store wraps the sqlite database.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

// Open connects to dsn and creates the tables if needed.
func Open(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}
	logger.Infow("database ready", "dsn", dsn)
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSubmission records an accepted payload under a new id.
func (s *Store) SaveSubmission(ctx context.Context, form, session string, values map[string]any) (Submission, error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return Submission{}, fmt.Errorf("encode submission: %w", err)
	}
	sub := Submission{
		ID:        uuid.NewString(),
		Form:      form,
		Session:   session,
		Values:    values,
		CreatedAt: s.now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, form, session, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.Form, sub.Session, string(payload), sub.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	s.logger.Infow("submission saved", "id", sub.ID, "form", form, "session", session)
	return sub, nil
}

// GetSubmission loads one submission.
func (s *Store) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, form, session, payload, created_at FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return sub, err
}

// ListSubmissions returns the submissions of a form, oldest first.
func (s *Store) ListSubmissions(ctx context.Context, form string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, form, session, payload, created_at FROM submissions WHERE form = ? ORDER BY created_at, id`, form)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (Submission, error) {
	var (
		sub     Submission
		payload string
		created string
	)
	if err := row.Scan(&sub.ID, &sub.Form, &sub.Session, &payload, &created); err != nil {
		return Submission{}, err
	}
	if err := json.Unmarshal([]byte(payload), &sub.Values); err != nil {
		return Submission{}, fmt.Errorf("decode submission %s: %w", sub.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Submission{}, fmt.Errorf("decode submission %s: %w", sub.ID, err)
	}
	sub.CreatedAt = t
	return sub, nil
}

// SaveDraft upserts the in-progress values of a session.
func (s *Store) SaveDraft(ctx context.Context, session, form string, values map[string]any) error {
	doc, err := bson.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (session, form, snapshot, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session) DO UPDATE SET form = excluded.form, snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		session, form, doc, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	s.logger.Debugw("draft saved", "session", session, "form", form, "bytes", len(doc))
	return nil
}

// LoadDraft returns the saved values of a session.
func (s *Store) LoadDraft(ctx context.Context, session string) (Draft, error) {
	var (
		d       = Draft{Session: session}
		doc     []byte
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT form, snapshot, updated_at FROM drafts WHERE session = ?`, session).Scan(&d.Form, &doc, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, fmt.Errorf("draft %s: %w", session, ErrNotFound)
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}

	var raw bson.M
	if err := bson.Unmarshal(doc, &raw); err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", session, err)
	}
	d.Values, _ = normalize(raw).(map[string]any)
	if d.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", session, err)
	}
	return d, nil
}

// DeleteDraft removes a session draft. Missing drafts are not an error.
func (s *Store) DeleteDraft(ctx context.Context, session string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE session = ?`, session); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// normalize converts decoded BSON containers back to the plain JSON shapes
// the form runtime works with. Integers widen to float64 as JSON numbers do.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	default:
		return v
	}
}
