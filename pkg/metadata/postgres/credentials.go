package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

func (s *Store) CreateAPIToken(ctx context.Context, t *metadata.ApiToken) error {
	const q = `INSERT INTO api_tokens (id, user_id, token, description, expires_at, is_api)
	           VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	err := s.pool.QueryRow(ctx, q, t.ID, t.UserID, t.Token, t.Description, t.ExpiresAt, t.IsAPI).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create api token: %w", err)
	}
	return nil
}

func scanAPIToken(row pgx.Row) (*metadata.ApiToken, error) {
	var t metadata.ApiToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.Description, &t.ExpiresAt, &t.IsAPI, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan api token: %w", err)
	}
	return &t, nil
}

const apiTokenColumns = `id, user_id, token, description, expires_at, is_api, created_at`

func (s *Store) FindAPITokenByToken(ctx context.Context, token string) (*metadata.ApiToken, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+apiTokenColumns+` FROM api_tokens WHERE token=$1`, token)
	return scanAPIToken(row)
}

func (s *Store) DeleteAPIToken(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM api_tokens WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete api token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.ErrNotFound
	}
	return nil
}

func (s *Store) ListAPITokens(ctx context.Context, userID string) ([]*metadata.ApiToken, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+apiTokenColumns+` FROM api_tokens WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api tokens: %w", err)
	}
	defer rows.Close()

	var out []*metadata.ApiToken
	for rows.Next() {
		t, err := scanAPIToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateS3Credential(ctx context.Context, c *metadata.S3Credential) error {
	const q = `INSERT INTO s3_credentials (id, user_id, access_key, secret_key, bucket_access)
	           VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	err := s.pool.QueryRow(ctx, q, c.ID, c.UserID, c.AccessKey, c.SecretKey, bucketSetToSlice(c.BucketAccess)).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create s3 credential: %w", err)
	}
	return nil
}

func (s *Store) FindS3CredentialByAccessKey(ctx context.Context, accessKey string) (*metadata.S3Credential, error) {
	const q = `SELECT id, user_id, access_key, secret_key, bucket_access, created_at FROM s3_credentials WHERE access_key=$1`
	var c metadata.S3Credential
	var bucketIDs []string
	err := s.pool.QueryRow(ctx, q, accessKey).Scan(&c.ID, &c.UserID, &c.AccessKey, &c.SecretKey, &bucketIDs, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find s3 credential: %w", err)
	}
	c.BucketAccess = bucketSliceToSet(bucketIDs)
	return &c, nil
}

func (s *Store) DeleteS3Credential(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM s3_credentials WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete s3 credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.ErrNotFound
	}
	return nil
}

func (s *Store) ListS3Credentials(ctx context.Context, userID string) ([]*metadata.S3Credential, error) {
	const q = `SELECT id, user_id, access_key, secret_key, bucket_access, created_at FROM s3_credentials WHERE user_id=$1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list s3 credentials: %w", err)
	}
	defer rows.Close()

	var out []*metadata.S3Credential
	for rows.Next() {
		var c metadata.S3Credential
		var bucketIDs []string
		if err := rows.Scan(&c.ID, &c.UserID, &c.AccessKey, &c.SecretKey, &bucketIDs, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan s3 credential: %w", err)
		}
		c.BucketAccess = bucketSliceToSet(bucketIDs)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func bucketSetToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func bucketSliceToSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
