package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

const bucketColumns = `id, name, owner_id, access, storage_quota, created_at, updated_at`

func scanBucket(row pgx.Row) (*metadata.Bucket, error) {
	var b metadata.Bucket
	var access string
	err := row.Scan(&b.ID, &b.Name, &b.OwnerID, &access, &b.StorageQuota, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bucket: %w", err)
	}
	b.Access = metadata.BucketAccess(access)
	return &b, nil
}

func (s *Store) CreateBucket(ctx context.Context, b *metadata.Bucket) error {
	const q = `INSERT INTO buckets (id, name, owner_id, access, storage_quota)
	           VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`
	err := s.pool.QueryRow(ctx, q, b.ID, b.Name, b.OwnerID, string(b.Access), b.StorageQuota).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (s *Store) FindBucketByID(ctx context.Context, id string) (*metadata.Bucket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bucketColumns+` FROM buckets WHERE id=$1`, id)
	return scanBucket(row)
}

func (s *Store) FindBucketByName(ctx context.Context, name string) (*metadata.Bucket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bucketColumns+` FROM buckets WHERE name=$1`, name)
	return scanBucket(row)
}

func (s *Store) UpdateBucket(ctx context.Context, b *metadata.Bucket) error {
	const q = `UPDATE buckets SET name=$2, access=$3, storage_quota=$4, updated_at=now()
	           WHERE id=$1 RETURNING updated_at`
	err := s.pool.QueryRow(ctx, q, b.ID, b.Name, string(b.Access), b.StorageQuota).Scan(&b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apierr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update bucket: %w", err)
	}
	return nil
}

// DeleteBucket cascades to objects, credentials' bucket_access entries
// are not touched here (they reference bucket IDs by value, not FK);
// callers must also remove the blob tree for this bucket.
func (s *Store) DeleteBucket(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM buckets WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.ErrNotFound
	}
	return nil
}

func (s *Store) ListBucketsByOwner(ctx context.Context, ownerID string) ([]*metadata.Bucket, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+bucketColumns+` FROM buckets WHERE owner_id=$1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list buckets by owner: %w", err)
	}
	defer rows.Close()

	var out []*metadata.Bucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListAllBuckets(ctx context.Context) ([]*metadata.Bucket, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+bucketColumns+` FROM buckets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list all buckets: %w", err)
	}
	defer rows.Close()

	var out []*metadata.Bucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
