// Package store persists generated blogs and the per-user action history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ActionGenerateBlog is recorded with every stored blog.
const ActionGenerateBlog = "generate_blog"

// DefaultListLimit caps List and History when no limit is given.
const DefaultListLimit = 20

// ErrNotFound is returned when a record does not exist for the user.
var ErrNotFound = errors.New("record not found")

// Store is the history storage collaborator. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
}

// Record is a stored pipeline result.
type Record struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	CreatedAt time.Time           `json:"created_at"`
	Result    core.PipelineResult `json:"result"`
}

// RecordSummary is a row of the blog listing.
type RecordSummary struct {
	ID             string    `json:"id"`
	SourceURL      string    `json:"source_url"`
	Title          string    `json:"title"`
	WordCount      int       `json:"word_count"`
	ProcessingTime float64   `json:"processing_time"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Action is an entry of the user's action log.
type Action struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	RecordID  string    `json:"record_id"`
	SourceURL string    `json:"source_url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Open connects to the database and creates the schema. For sqlite3 the DSN
// is a file path whose directory is created when missing.
func Open(driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholder = sq.Question
		if dir := sqliteDir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	case DriverPostgres:
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time avoids "database is locked" under concurrent runs.
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
	}

	if err := s.initialize(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func sqliteDir(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return ""
	}
	return dir
}

// initialize creates the necessary tables
func (s *Store) initialize(ctx context.Context) error {
	blogsTable := `
	CREATE TABLE IF NOT EXISTS blogs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		source_url TEXT NOT NULL,
		title TEXT NOT NULL,
		word_count INTEGER NOT NULL,
		processing_time DOUBLE PRECISION NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		result TEXT NOT NULL
	);`

	historyTable := `
	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		record_id TEXT NOT NULL,
		source_url TEXT,
		title TEXT,
		created_at TIMESTAMP NOT NULL
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_blogs_user_generated ON blogs (user_id, generated_at);`,
		`CREATE INDEX IF NOT EXISTS idx_history_user_created ON history (user_id, created_at);`,
	}

	for _, stmt := range append([]string{blogsTable, historyTable}, indexes...) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Driver returns the database driver name.
func (s *Store) Driver() string { return s.driver }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores result for userID together with a generate_blog action row
// in one transaction, and returns the new record id.
func (s *Store) Append(ctx context.Context, userID string, result core.PipelineResult) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	generatedAt := result.GeneratedAt.UTC()
	if result.GeneratedAt.IsZero() {
		generatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertBlog, args, err := s.sb.Insert("blogs").
		Columns("id", "user_id", "source_url", "title", "word_count", "processing_time", "generated_at", "result").
		Values(id, userID, result.SourceURL, result.Blog.Title, result.WordCount, result.ProcessingTime, generatedAt, string(payload)).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertBlog, args...); err != nil {
		return "", fmt.Errorf("failed to insert blog: %w", err)
	}

	insertAction, args, err := s.sb.Insert("history").
		Columns("id", "user_id", "action", "record_id", "source_url", "title", "created_at").
		Values(uuid.NewString(), userID, ActionGenerateBlog, id, result.SourceURL, result.Blog.Title, now).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertAction, args...); err != nil {
		return "", fmt.Errorf("failed to insert history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return id, nil
}

// Get returns the record id owned by userID.
func (s *Store) Get(ctx context.Context, userID, id string) (*Record, error) {
	query, args, err := s.sb.Select("id", "user_id", "generated_at", "result").
		From("blogs").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var record Record
	var payload string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&record.ID, &record.UserID, &record.CreatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &record.Result); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &record, nil
}

// List returns the user's most recent blogs, newest first.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]RecordSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query, args, err := s.sb.Select("id", "source_url", "title", "word_count", "processing_time", "generated_at").
		From("blogs").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("generated_at DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blogs: %w", err)
	}
	defer rows.Close()

	summaries := []RecordSummary{}
	for rows.Next() {
		var r RecordSummary
		if err := rows.Scan(&r.ID, &r.SourceURL, &r.Title, &r.WordCount, &r.ProcessingTime, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blog: %w", err)
		}
		summaries = append(summaries, r)
	}
	return summaries, rows.Err()
}

// History returns the user's action log, newest first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query, args, err := s.sb.Select("id", "action", "record_id", "source_url", "title", "created_at").
		From("history").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	actions := []Action{}
	for rows.Next() {
		var a Action
		var sourceURL, title sql.NullString
		if err := rows.Scan(&a.ID, &a.Action, &a.RecordID, &sourceURL, &title, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		a.SourceURL = sourceURL.String
		a.Title = title.String
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
