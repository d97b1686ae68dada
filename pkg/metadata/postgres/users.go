package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

func (s *Store) CreateUser(ctx context.Context, u *metadata.User) error {
	const q = `INSERT INTO users (id, username, password_hash, enabled, is_admin, storage_quota)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           RETURNING created_at, updated_at`
	err := s.pool.QueryRow(ctx, q, u.ID, u.Username, u.PasswordHash, u.Enabled, u.IsAdmin, u.StorageQuota).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*metadata.User, error) {
	var u metadata.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Enabled, &u.IsAdmin, &u.StorageQuota, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

const userColumns = `id, username, password_hash, enabled, is_admin, storage_quota, created_at, updated_at`

func (s *Store) FindUserByID(ctx context.Context, id string) (*metadata.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*metadata.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *Store) UpdateUser(ctx context.Context, u *metadata.User) error {
	const q = `UPDATE users SET username=$2, password_hash=$3, enabled=$4, is_admin=$5, storage_quota=$6, updated_at=now()
	           WHERE id=$1 RETURNING updated_at`
	err := s.pool.QueryRow(ctx, q, u.ID, u.Username, u.PasswordHash, u.Enabled, u.IsAdmin, u.StorageQuota).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apierr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*metadata.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*metadata.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
