package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS books (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	genre TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	isbn TEXT NOT NULL DEFAULT '',
	cover_url TEXT NOT NULL DEFAULT '',
	open_library_key TEXT NOT NULL DEFAULT '',
	gutenberg_id BIGINT NOT NULL DEFAULT 0,
	source TEXT NOT NULL DEFAULT 'Personal',
	added_at TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'unread',
	rating INTEGER NOT NULL DEFAULT 0,
	review TEXT NOT NULL DEFAULT '',
	current_page INTEGER NOT NULL DEFAULT 0,
	total_pages INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL DEFAULT '',
	finished_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_books_added_at ON books(added_at);
CREATE INDEX IF NOT EXISTS idx_books_status ON books(status);
`

// PostgresStore persists the library in PostgreSQL behind a connection pool.
// Updates take a row lock so concurrent patches never lose writes.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to the given DSN and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger := slog.Default().With("component", "library", "driver", "postgres")
	logger.Info("library database ready")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Add(ctx context.Context, b Book) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO books (title, author, genre, notes, year, isbn, cover_url,
			open_library_key, gutenberg_id, source, added_at, status, rating,
			review, current_page, total_pages, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id`,
		b.Title, b.Author, b.Genre, b.Notes, b.Year, b.ISBN, b.CoverURL,
		b.OpenLibraryKey, b.GutenbergID, b.Source, b.AddedAt, b.Status,
		b.Rating, b.Review, b.CurrentPage, b.TotalPages, b.StartedAt, b.FinishedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert book: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Book, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id = $1", id)
	b, err := scanPgBook(row)
	if err != nil {
		return Book{}, err
	}
	return b, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Book, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+bookColumns+" FROM books ORDER BY added_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanPgBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, id int64, p Patch) (Book, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Book{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id = $1 FOR UPDATE", id)
	b, err := scanPgBook(row)
	if err != nil {
		return Book{}, err
	}
	p.Apply(&b)

	_, err = tx.Exec(ctx, `
		UPDATE books SET status=$1, rating=$2, review=$3, current_page=$4,
			total_pages=$5, started_at=$6, finished_at=$7
		WHERE id=$8`,
		b.Status, b.Rating, b.Review, b.CurrentPage, b.TotalPages,
		b.StartedAt, b.FinishedAt, id)
	if err != nil {
		return Book{}, fmt.Errorf("update book %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Book{}, fmt.Errorf("commit update: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Remove(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM books WHERE id=$1", id)
	if err != nil {
		return false, fmt.Errorf("remove book %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Notes, &b.Year,
		&b.ISBN, &b.CoverURL, &b.OpenLibraryKey, &b.GutenbergID, &b.Source,
		&b.AddedAt, &b.Status, &b.Rating, &b.Review, &b.CurrentPage,
		&b.TotalPages, &b.StartedAt, &b.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	if err != nil {
		return Book{}, fmt.Errorf("scan book: %w", err)
	}
	return b, nil
}

var _ Store = (*PostgresStore)(nil)
