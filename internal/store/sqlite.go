package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/supportline/supportline/internal/domain"
	"github.com/supportline/supportline/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS knowledge (
		question TEXT PRIMARY KEY,
		answer TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS help_requests (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		resolved_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_help_requests_status_created ON help_requests(status, created_at);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		mobile TEXT,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindKnowledge retrieves a knowledge base entry by normalized question.
func (s *SQLiteStore) FindKnowledge(ctx context.Context, question string) (*domain.KnowledgeEntry, error) {
	query := `SELECT question, answer, created_at FROM knowledge WHERE question = ?`

	row := s.db.QueryRowContext(ctx, query, question)

	var entry domain.KnowledgeEntry
	var createdAt int64

	err := row.Scan(&entry.Question, &entry.Answer, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan knowledge row: %w", err)
	}

	entry.CreatedAt = time.Unix(createdAt, 0)
	return &entry, nil
}

// UpsertKnowledge creates an entry or replaces its answer in place. The
// PRIMARY KEY on question enforces at most one entry per normalized question.
func (s *SQLiteStore) UpsertKnowledge(ctx context.Context, question, answer string) (*domain.KnowledgeEntry, error) {
	query := `
	INSERT INTO knowledge (question, answer, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(question) DO UPDATE SET
		answer = excluded.answer`

	now := time.Now()
	if _, err := s.db.ExecContext(ctx, query, question, answer, now.Unix()); err != nil {
		return nil, fmt.Errorf("upsert knowledge: %w", err)
	}

	entry, err := s.FindKnowledge(ctx, question)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("knowledge entry missing after upsert: %q", question)
	}
	return entry, nil
}

// CreateHelpRequest persists a new help request record.
func (s *SQLiteStore) CreateHelpRequest(ctx context.Context, req *domain.HelpRequest) error {
	query := `
	INSERT INTO help_requests (id, question, answer, status, created_at, resolved_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	var answer interface{}
	if req.Answer != "" {
		answer = req.Answer
	}
	var resolvedAt interface{}
	if req.ResolvedAt != nil {
		resolvedAt = req.ResolvedAt.Unix()
	}

	_, err := s.db.ExecContext(ctx, query,
		req.ID, req.Question, answer, string(req.Status),
		req.CreatedAt.Unix(), resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("create help request: %w", err)
	}
	return nil
}

// GetHelpRequest retrieves a help request by ID.
func (s *SQLiteStore) GetHelpRequest(ctx context.Context, id string) (*domain.HelpRequest, error) {
	query := `
		SELECT id, question, answer, status, created_at, resolved_at
		FROM help_requests WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	req, err := scanHelpRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan help request row: %w", err)
	}
	return req, nil
}

// ListHelpRequests returns help requests newest-first, optionally filtered by status.
func (s *SQLiteStore) ListHelpRequests(ctx context.Context, status domain.HelpStatus) ([]*domain.HelpRequest, error) {
	query := `
		SELECT id, question, answer, status, created_at, resolved_at
		FROM help_requests`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query help requests: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close help request rows", "error", closeErr)
		}
	}()

	var reqs []*domain.HelpRequest
	for rows.Next() {
		req, err := scanHelpRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan help request row: %w", err)
		}
		reqs = append(reqs, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate help requests: %w", err)
	}

	return reqs, nil
}

// UpdateHelpRequest persists status, answer, and resolved_at for an existing
// record. Retries with exponential backoff on SQLite contention errors.
func (s *SQLiteStore) UpdateHelpRequest(ctx context.Context, req *domain.HelpRequest) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.updateHelpRequestOnce(ctx, req)
		if err == nil || err == ErrNotFound {
			return err
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 50ms, 100ms, 200ms
			slog.Debug("UpdateHelpRequest hit SQLite contention, retrying",
				"id", req.ID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("update help request %s: %w", req.ID, err)
	}

	return fmt.Errorf("update help request %s after %d attempts: %w", req.ID, maxRetries, err)
}

func (s *SQLiteStore) updateHelpRequestOnce(ctx context.Context, req *domain.HelpRequest) error {
	query := `UPDATE help_requests SET status = ?, answer = ?, resolved_at = ? WHERE id = ?`

	var answer interface{}
	if req.Answer != "" {
		answer = req.Answer
	}
	var resolvedAt interface{}
	if req.ResolvedAt != nil {
		resolvedAt = req.ResolvedAt.Unix()
	}

	result, err := s.db.ExecContext(ctx, query, string(req.Status), answer, resolvedAt, req.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListExpiredPending returns pending help requests older than the TTL.
func (s *SQLiteStore) ListExpiredPending(ctx context.Context, ttl time.Duration) ([]*domain.HelpRequest, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `
		SELECT id, question, answer, status, created_at, resolved_at
		FROM help_requests WHERE status = ? AND created_at < ?
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, string(domain.StatusPending), threshold)
	if err != nil {
		return nil, fmt.Errorf("query expired pending requests: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close expired pending rows", "error", closeErr)
		}
	}()

	var reqs []*domain.HelpRequest
	for rows.Next() {
		req, err := scanHelpRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired pending row: %w", err)
		}
		reqs = append(reqs, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired pending requests: %w", err)
	}

	return reqs, nil
}

// GetUserByEmail retrieves a user account by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, username, email, mobile, password_hash, created_at, updated_at
		FROM users WHERE email = ?`

	row := s.db.QueryRowContext(ctx, query, email)

	var user domain.User
	var mobile sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &mobile,
		&user.PasswordHash, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Mobile = mobile.String
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// CreateUser persists a new user account.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (id, username, email, mobile, password_hash, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	var mobile interface{}
	if user.Mobile != "" {
		mobile = user.Mobile
	}

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, mobile,
		user.PasswordHash, user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHelpRequest(row rowScanner) (*domain.HelpRequest, error) {
	var req domain.HelpRequest
	var answer sql.NullString
	var status string
	var createdAt int64
	var resolvedAt sql.NullInt64

	if err := row.Scan(&req.ID, &req.Question, &answer, &status, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}

	req.Answer = answer.String
	req.Status = domain.HelpStatus(status)
	req.CreatedAt = time.Unix(createdAt, 0)
	if resolvedAt.Valid {
		ts := time.Unix(resolvedAt.Int64, 0)
		req.ResolvedAt = &ts
	}

	return &req, nil
}
