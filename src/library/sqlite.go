package library

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	genre TEXT DEFAULT '',
	notes TEXT DEFAULT '',
	year INTEGER DEFAULT 0,
	isbn TEXT DEFAULT '',
	cover_url TEXT DEFAULT '',
	open_library_key TEXT DEFAULT '',
	gutenberg_id INTEGER DEFAULT 0,
	source TEXT DEFAULT 'Personal',
	added_at TEXT NOT NULL,
	status TEXT DEFAULT 'unread',
	rating INTEGER DEFAULT 0,
	review TEXT DEFAULT '',
	current_page INTEGER DEFAULT 0,
	total_pages INTEGER DEFAULT 0,
	started_at TEXT DEFAULT '',
	finished_at TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_books_added_at ON books(added_at);
CREATE INDEX IF NOT EXISTS idx_books_status ON books(status);
`

const bookColumns = `id, title, author, genre, notes, year, isbn, cover_url,
	open_library_key, gutenberg_id, source, added_at, status, rating, review,
	current_page, total_pages, started_at, finished_at`

// SQLiteStore persists the library in a local SQLite file. A single write
// lock serializes read-modify-write updates; the driver handles the rest.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger := slog.Default().With("component", "library", "driver", "sqlite")
	logger.Info("library database ready", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, b Book) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO books (title, author, genre, notes, year, isbn, cover_url,
			open_library_key, gutenberg_id, source, added_at, status, rating,
			review, current_page, total_pages, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.Title, b.Author, b.Genre, b.Notes, b.Year, b.ISBN, b.CoverURL,
		b.OpenLibraryKey, b.GutenbergID, b.Source, b.AddedAt, b.Status,
		b.Rating, b.Review, b.CurrentPage, b.TotalPages, b.StartedAt, b.FinishedAt)
	if err != nil {
		return 0, fmt.Errorf("insert book: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (Book, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id = ?", id)
	return scanBook(row)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+bookColumns+" FROM books ORDER BY added_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, id int64, p Patch) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.Get(ctx, id)
	if err != nil {
		return Book{}, err
	}
	p.Apply(&b)

	_, err = s.db.ExecContext(ctx, `
		UPDATE books SET status=?, rating=?, review=?, current_page=?,
			total_pages=?, started_at=?, finished_at=?
		WHERE id=?`,
		b.Status, b.Rating, b.Review, b.CurrentPage, b.TotalPages,
		b.StartedAt, b.FinishedAt, id)
	if err != nil {
		return Book{}, fmt.Errorf("update book %d: %w", id, err)
	}
	return b, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM books WHERE id=?", id)
	if err != nil {
		return false, fmt.Errorf("remove book %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Notes, &b.Year,
		&b.ISBN, &b.CoverURL, &b.OpenLibraryKey, &b.GutenbergID, &b.Source,
		&b.AddedAt, &b.Status, &b.Rating, &b.Review, &b.CurrentPage,
		&b.TotalPages, &b.StartedAt, &b.FinishedAt)
	if err == sql.ErrNoRows {
		return Book{}, ErrNotFound
	}
	if err != nil {
		return Book{}, fmt.Errorf("scan book: %w", err)
	}
	return b, nil
}

var _ Store = (*SQLiteStore)(nil)
