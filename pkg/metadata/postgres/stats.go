package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

// FlushStats merges a batch of per-bucket, per-day deltas, called
// periodically by the stats aggregator (C6). Each delta is added to
// any existing row for its (bucketID, day) key.
func (s *Store) FlushStats(ctx context.Context, deltas []metadata.DayStats) error {
	if len(deltas) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin stats flush: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO bucket_stats (bucket_id, day, api_requests, s3_requests, webdav_reqs, requests_count, bytes_served)
	           VALUES ($1, $2, $3, $4, $5, $6, $7)
	           ON CONFLICT (bucket_id, day) DO UPDATE SET
	             api_requests = bucket_stats.api_requests + EXCLUDED.api_requests,
	             s3_requests = bucket_stats.s3_requests + EXCLUDED.s3_requests,
	             webdav_reqs = bucket_stats.webdav_reqs + EXCLUDED.webdav_reqs,
	             requests_count = bucket_stats.requests_count + EXCLUDED.requests_count,
	             bytes_served = bucket_stats.bytes_served + EXCLUDED.bytes_served`

	for _, d := range deltas {
		if _, err := tx.Exec(ctx, q, d.BucketID, d.Day, d.APIRequests, d.S3Requests, d.WebDAVReqs, d.RequestsCount, d.BytesServed); err != nil {
			return fmt.Errorf("flush stats for bucket %s day %s: %w", d.BucketID, d.Day, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) GetStats(ctx context.Context, bucketID, day string) (*metadata.DayStats, error) {
	const q = `SELECT bucket_id, day, api_requests, s3_requests, webdav_reqs, requests_count, bytes_served
	           FROM bucket_stats WHERE bucket_id=$1 AND day=$2`
	var d metadata.DayStats
	var dayVal any
	err := s.pool.QueryRow(ctx, q, bucketID, day).Scan(&d.BucketID, &dayVal, &d.APIRequests, &d.S3Requests, &d.WebDAVReqs, &d.RequestsCount, &d.BytesServed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	d.Day = day
	return &d, nil
}
