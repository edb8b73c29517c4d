// Package sqlite persists submitted site requests in a SQLite database and
// validates aliases against the requests already on file.
package sqlite

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/sources"
	"github.com/goliatone/go-siterequest/pkg/sources/sqlite/migrations"
	"github.com/goliatone/go-siterequest/pkg/validation"
)

// ErrAliasTaken reports an alias already claimed by an earlier request.
var ErrAliasTaken = fmt.Errorf("sqlite: alias already requested: %w", sources.ErrConflict)

// Record is a stored request.
type Record struct {
	ID         string
	Submission model.Submission
	CreatedAt  time.Time
}

// Store implements sources.Sink and sources.AliasValidator.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

var (
	_ sources.Sink           = (*Store)(nil)
	_ sources.AliasValidator = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (creating when needed) the database at path and applies the
// embedded migrations. The path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, options ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite: storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		clean := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(clean), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("sqlite: create dirs: %w", err)
		}
		dsn = clean + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	s := &Store{db: db, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save implements sources.Sink. A second request for the same alias fails
// with ErrAliasTaken.
func (s *Store) Save(ctx context.Context, submission model.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(submission.Division) == "" || strings.TrimSpace(submission.SiteTemplate) == "" {
		return errors.New("sqlite: division and site template are required")
	}
	if strings.TrimSpace(submission.ContentTypeID) == "" {
		return errors.New("sqlite: content type is required")
	}
	values := submission.Values
	if values == nil {
		values = map[string]any{}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("sqlite: encode values: %w", err)
	}

	id := uuid.NewString()
	alias := strings.ToLower(strings.TrimSpace(submission.Alias))
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO site_requests (
		   id, division_id, site_template_id, content_type_id, alias, field_values, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		submission.Division,
		submission.SiteTemplate,
		submission.ContentTypeID,
		alias,
		string(payload),
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: alias %q: %w", alias, ErrAliasTaken)
		}
		return fmt.Errorf("sqlite: insert request: %w", err)
	}
	s.logger.Debug().Str("id", id).Str("alias", alias).Str("division", submission.Division).Msg("site request stored")
	return nil
}

// ValidateAlias implements sources.AliasValidator. Malformed aliases and
// aliases already on file are invalid.
func (s *Store) ValidateAlias(ctx context.Context, alias string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	alias = strings.ToLower(strings.TrimSpace(alias))
	if validation.ValidateAliasFormat(alias) != nil {
		return false, nil
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM site_requests WHERE alias = ?`, alias).Scan(&count); err != nil {
		return false, fmt.Errorf("sqlite: lookup alias: %w", err)
	}
	return count == 0, nil
}

// Requests lists stored requests, oldest first.
func (s *Store) Requests(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, division_id, site_template_id, content_type_id, alias, field_values, created_at
		   FROM site_requests
		  ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Record{}
	for rows.Next() {
		var (
			rec     Record
			payload string
			created int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Submission.Division,
			&rec.Submission.SiteTemplate,
			&rec.Submission.ContentTypeID,
			&rec.Submission.Alias,
			&payload,
			&created,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan request: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Submission.Values); err != nil {
			return nil, fmt.Errorf("sqlite: decode values for %s: %w", rec.ID, err)
		}
		rec.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate requests: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
