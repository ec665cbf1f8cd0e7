package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tripkit/internal/domain"
)

// SQLiteStore implements domain.Ledger using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.Ledger = (*SQLiteStore)(nil)

// DSN returns the modernc.org/sqlite data source name for dbPath with WAL
// journaling and a 5s busy timeout applied to every connection.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) RecordDocument(ctx context.Context, doc domain.ItineraryDocument) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, path, renderer, bytes, sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Path, doc.Renderer, doc.Bytes, doc.SHA256, doc.CreatedAt.UTC(),
	)
	return err
}

// ListDocuments returns the newest documents first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, limit int) ([]domain.ItineraryDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, renderer, bytes, sha256, created_at
		 FROM documents ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.ItineraryDocument
	for rows.Next() {
		var d domain.ItineraryDocument
		if err := rows.Scan(&d.ID, &d.Path, &d.Renderer, &d.Bytes, &d.SHA256, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDocument returns nil, nil when no document has the id.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*domain.ItineraryDocument, error) {
	var d domain.ItineraryDocument
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, renderer, bytes, sha256, created_at FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Path, &d.Renderer, &d.Bytes, &d.SHA256, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) LogInvocation(ctx context.Context, rec domain.InvocationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (capability, arguments, outcome, error_code, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Capability, rec.Arguments, rec.Outcome, rec.ErrorCode, rec.DurationMs, rec.CreatedAt.UTC(),
	)
	return err
}

// RecentInvocations returns the newest invocations first.
func (s *SQLiteStore) RecentInvocations(ctx context.Context, limit int) ([]domain.InvocationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, capability, arguments, outcome, error_code, duration_ms, created_at
		 FROM invocations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.InvocationRecord
	for rows.Next() {
		var r domain.InvocationRecord
		if err := rows.Scan(&r.ID, &r.Capability, &r.Arguments, &r.Outcome,
			&r.ErrorCode, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// PruneInvocations deletes invocation rows older than before. Documents are
// never pruned: their files outlive the ledger.
func (s *SQLiteStore) PruneInvocations(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invocations WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("pruned invocation ledger", "rows", n, "before", before.Format(time.RFC3339))
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
