package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

const processedTable = "processed_exposes"

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package state.
var migrateMu sync.Mutex

// SQLRepository stores processed ids in a relational database.
type SQLRepository struct {
	db *sql.DB
	ph sq.PlaceholderFormat
}

var _ Store = (*SQLRepository)(nil)

// OpenSQLite opens (and creates) the database file at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newSQLRepository(ctx, db, "sqlite3", sq.Question)
}

// sqliteDSN builds a file: URI; the path is percent-escaped so '?' and '#' stay part of it.
func sqliteDSN(path string) string {
	query := url.Values{}
	query.Set("cache", "shared")
	query.Set("mode", "rwc")
	query.Set("_journal_mode", "WAL")
	query.Set("_busy_timeout", "5000")
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + query.Encode()
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newSQLRepository(ctx, db, "postgres", sq.Dollar)
}

func newSQLRepository(ctx context.Context, db *sql.DB, dialect string, ph sq.PlaceholderFormat) (*SQLRepository, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := migrate(db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLRepository{db: db, ph: ph}, nil
}

func migrate(db *sql.DB, dialect string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return nil
}

// IsProcessed implements ports.SeenStore.
func (r *SQLRepository) IsProcessed(ctx context.Context, id int64) (bool, error) {
	query, args, err := r.existsQuery(id)
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("query processed expose: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed implements ports.SeenStore. Marking an id twice is not an error.
func (r *SQLRepository) MarkProcessed(ctx context.Context, id int64) error {
	_, err := r.insert(ctx, id)
	return err
}

// ClaimProcessed implements ports.SeenClaimer; only the first insert of an id succeeds.
func (r *SQLRepository) ClaimProcessed(ctx context.Context, id int64) (bool, error) {
	return r.insert(ctx, id)
}

// Close closes the database handle.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) insert(ctx context.Context, id int64) (bool, error) {
	query, args, err := r.insertQuery(id)
	if err != nil {
		return false, fmt.Errorf("build insert query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert processed expose: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *SQLRepository) existsQuery(id int64) (string, []any, error) {
	return sq.Select("COUNT(*)").
		From(processedTable).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(r.ph).
		ToSql()
}

func (r *SQLRepository) insertQuery(id int64) (string, []any, error) {
	return sq.Insert(processedTable).
		Columns("id").
		Values(id).
		Suffix("ON CONFLICT (id) DO NOTHING").
		PlaceholderFormat(r.ph).
		ToSql()
}
