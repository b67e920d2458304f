package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

const createBlobsTable = `CREATE TABLE IF NOT EXISTS blobs (
	container  TEXT NOT NULL,
	name       TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (container, name)
)`

// SQLStore implements Store on a SQLite table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the blobs table if needed.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, createBlobsTable); err != nil {
		return nil, fmt.Errorf("creating blobs table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Download(ctx context.Context, container, name string) ([]byte, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("data").
		From(entsql.Table("blobs")).
		Where(entsql.And(entsql.EQ("container", container), entsql.EQ("name", name))).
		Query()

	var data []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s/%s: %w", container, name, err)
	}
	return data, nil
}

func (s *SQLStore) Upload(ctx context.Context, container, name string, data []byte) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Insert("blobs").
		Columns("container", "name", "data", "updated_at").
		Values(container, name, data, time.Now().UTC()).
		OnConflict(entsql.ConflictColumns("container", "name"), entsql.ResolveWithNewValues()).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing blob %s/%s: %w", container, name, err)
	}
	return nil
}
