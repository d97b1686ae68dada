package postgres

import (
	"context"
	"fmt"

	"github.com/marmos91/byteserve/pkg/metadata"
)

func (s *Store) GetBucketConfig(ctx context.Context, bucketID string) ([]*metadata.BucketConfig, error) {
	const q = `SELECT bucket_id, key, value, type FROM bucket_config WHERE bucket_id=$1`
	rows, err := s.pool.Query(ctx, q, bucketID)
	if err != nil {
		return nil, fmt.Errorf("get bucket config: %w", err)
	}
	defer rows.Close()

	var out []*metadata.BucketConfig
	for rows.Next() {
		var c metadata.BucketConfig
		var typ string
		if err := rows.Scan(&c.BucketID, &c.Key, &c.Value, &typ); err != nil {
			return nil, fmt.Errorf("scan bucket config: %w", err)
		}
		c.Type = metadata.ConfigValueType(typ)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) SetBucketConfig(ctx context.Context, bucketID, key, value string, valueType metadata.ConfigValueType) error {
	const q = `INSERT INTO bucket_config (bucket_id, key, value, type) VALUES ($1, $2, $3, $4)
	           ON CONFLICT (bucket_id, key) DO UPDATE SET value=EXCLUDED.value, type=EXCLUDED.type`
	if _, err := s.pool.Exec(ctx, q, bucketID, key, value, string(valueType)); err != nil {
		return fmt.Errorf("set bucket config: %w", err)
	}
	return nil
}
