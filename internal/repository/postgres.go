package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// PostgresBlobStore keeps blobs in the "blobs" table created by the migrations.
type PostgresBlobStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPostgresBlobStore(db *sql.DB, logger zerolog.Logger) *PostgresBlobStore {
	return &PostgresBlobStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresBlobStore) Provider() string { return "postgres" }

func (s *PostgresBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM blobs WHERE path = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, path).Scan(&exists); err != nil {
		return false, storeErr("exists", path, err)
	}
	return exists, nil
}

func (s *PostgresBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	query := `SELECT data FROM blobs WHERE path = $1`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, storeErr("get", path, err)
	}
	return data, nil
}

func (s *PostgresBlobStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	query := `
		INSERT INTO blobs (path, data, content_type, size, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (path) DO UPDATE
		SET data = EXCLUDED.data,
			content_type = EXCLUDED.content_type,
			size = EXCLUDED.size,
			updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, path, data, contentType, len(data)); err != nil {
		return storeErr("put", path, err)
	}

	s.logger.Debug().Str("path", path).Int("size", len(data)).Msg("Blob stored in postgres")
	return nil
}

// GetVersion uses the row's xmin as the version: every UPDATE writes a new tuple with a new xmin.
func (s *PostgresBlobStore) GetVersion(ctx context.Context, path string) ([]byte, string, error) {
	query := `SELECT data, xmin::text FROM blobs WHERE path = $1`

	var (
		data    []byte
		version string
	)
	err := s.db.QueryRowContext(ctx, query, path).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrBlobNotFound
	}
	if err != nil {
		return nil, "", storeErr("get", path, err)
	}
	return data, version, nil
}

func (s *PostgresBlobStore) PutIfVersion(ctx context.Context, path string, data []byte, contentType, version string) error {
	var (
		result sql.Result
		err    error
	)
	if version == "" {
		query := `
			INSERT INTO blobs (path, data, content_type, size, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (path) DO NOTHING
		`
		result, err = s.db.ExecContext(ctx, query, path, data, contentType, len(data))
	} else {
		query := `
			UPDATE blobs
			SET data = $2,
				content_type = $3,
				size = $4,
				updated_at = NOW()
			WHERE path = $1 AND xmin::text = $5
		`
		result, err = s.db.ExecContext(ctx, query, path, data, contentType, len(data), version)
	}
	if err != nil {
		return storeErr("put", path, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return storeErr("put", path, err)
	}
	if affected == 0 {
		return ErrVersionMismatch
	}
	return nil
}

func (s *PostgresBlobStore) LastModified(ctx context.Context, path string) (time.Time, error) {
	query := `SELECT updated_at FROM blobs WHERE path = $1`

	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, query, path).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrBlobNotFound
	}
	if err != nil {
		return time.Time{}, storeErr("stat", path, err)
	}
	return updatedAt, nil
}

func (s *PostgresBlobStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE path = $1`, path); err != nil {
		return storeErr("delete", path, err)
	}
	return nil
}

func (s *PostgresBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	// LIKE не подходит: "_" в путях это обычный символ
	query := `
		SELECT path FROM blobs
		WHERE substr(path, 1, length($1)) = $1
		ORDER BY path
	`

	rows, err := s.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, storeErr("list", prefix, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, storeErr("list", prefix, err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", prefix, err)
	}
	return paths, nil
}
