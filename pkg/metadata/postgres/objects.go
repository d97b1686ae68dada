package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

const objectColumns = `id, bucket_id, parent_id, filename, mime_type, size, created_at, updated_at`

func scanObject(row pgx.Row) (*metadata.Object, error) {
	var o metadata.Object
	err := row.Scan(&o.ID, &o.BucketID, &o.ParentID, &o.Filename, &o.MimeType, &o.Size, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan object: %w", err)
	}
	return &o, nil
}

func (s *Store) FindObjectInDir(ctx context.Context, bucketID string, parentID *string, filename string) (*metadata.Object, error) {
	const q = `SELECT ` + objectColumns + ` FROM objects
	           WHERE bucket_id=$1 AND parent_id IS NOT DISTINCT FROM $2 AND filename=$3`
	row := s.pool.QueryRow(ctx, q, bucketID, parentID, filename)
	return scanObject(row)
}

func (s *Store) FindObjectByID(ctx context.Context, bucketID, id string) (*metadata.Object, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+objectColumns+` FROM objects WHERE bucket_id=$1 AND id=$2`, bucketID, id)
	return scanObject(row)
}

func (s *Store) ListChildren(ctx context.Context, bucketID string, parentID *string, filter metadata.ChildFilter, order metadata.ChildOrder, limit int, cursor string) ([]*metadata.Object, string, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + objectColumns + ` FROM objects WHERE bucket_id=$1 AND parent_id IS NOT DISTINCT FROM $2`)
	args := []any{bucketID, parentID}

	if filter.FoldersOnly {
		b.WriteString(` AND mime_type = 'folder'`)
	}
	if filter.FilenamePrefix != "" {
		args = append(args, filter.FilenamePrefix+"%")
		fmt.Fprintf(&b, " AND filename LIKE $%d", len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		fmt.Fprintf(&b, " AND filename > $%d", len(args))
	}

	orderCol := "filename"
	if order == metadata.OrderByUpdatedAt {
		orderCol = "updated_at"
	}
	fmt.Fprintf(&b, " ORDER BY %s ASC", orderCol)

	if limit > 0 {
		args = append(args, limit+1)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, "", fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var out []*metadata.Object
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if limit > 0 && len(out) > limit {
		nextCursor = out[limit-1].Filename
		out = out[:limit]
	}
	return out, nextCursor, nil
}

// ListObjectsRecursively walks the object tree with a recursive CTE
// that builds each non-folder descendant's slash-joined key, then
// filters by prefix in Go (prefixes may straddle folder boundaries,
// which a plain SQL LIKE on filename cannot express).
func (s *Store) ListObjectsRecursively(ctx context.Context, bucketID, prefix string) ([]*metadata.Object, error) {
	const q = `
	WITH RECURSIVE tree AS (
		SELECT id, bucket_id, parent_id, filename, mime_type, size, created_at, updated_at, filename AS key
		FROM objects WHERE bucket_id = $1 AND parent_id IS NULL
		UNION ALL
		SELECT o.id, o.bucket_id, o.parent_id, o.filename, o.mime_type, o.size, o.created_at, o.updated_at,
		       tree.key || '/' || o.filename
		FROM objects o JOIN tree ON o.parent_id = tree.id
		WHERE o.bucket_id = $1
	)
	SELECT id, bucket_id, parent_id, filename, mime_type, size, created_at, updated_at, key
	FROM tree WHERE mime_type <> 'folder' ORDER BY key`

	rows, err := s.pool.Query(ctx, q, bucketID)
	if err != nil {
		return nil, fmt.Errorf("list objects recursively: %w", err)
	}
	defer rows.Close()

	var out []*metadata.Object
	for rows.Next() {
		var o metadata.Object
		var key string
		if err := rows.Scan(&o.ID, &o.BucketID, &o.ParentID, &o.Filename, &o.MimeType, &o.Size, &o.CreatedAt, &o.UpdatedAt, &key); err != nil {
			return nil, fmt.Errorf("scan recursive object: %w", err)
		}
		if strings.HasPrefix(key, prefix) {
			out = append(out, &o)
		}
	}
	return out, rows.Err()
}

// CreateObject enforces (bucket_id, parent_id, filename) uniqueness at
// the database level via the uq_objects_parent_filename constraint;
// on conflict it re-selects and returns the existing row, giving
// findOrCreate semantics to callers (the upload engine's single-shot
// PUT path relies on this).
func (s *Store) CreateObject(ctx context.Context, bucketID string, parentID *string, filename, mimeType string, size int64) (*metadata.Object, error) {
	const q = `INSERT INTO objects (id, bucket_id, parent_id, filename, mime_type, size)
	           VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
	           ON CONFLICT (bucket_id, parent_id, filename) DO NOTHING
	           RETURNING ` + objectColumns

	row := s.pool.QueryRow(ctx, q, bucketID, parentID, filename, mimeType, size)
	obj, err := scanObject(row)
	if err == nil {
		return obj, nil
	}
	if !errors.Is(err, apierr.ErrNotFound) {
		return nil, err
	}

	// ON CONFLICT DO NOTHING produced no row: the object already exists.
	return s.FindObjectInDir(ctx, bucketID, parentID, filename)
}

func (s *Store) UpdateObject(ctx context.Context, o *metadata.Object) error {
	const q = `UPDATE objects SET filename=$2, mime_type=$3, size=$4, updated_at=now()
	           WHERE id=$1 RETURNING updated_at`
	err := s.pool.QueryRow(ctx, q, o.ID, o.Filename, o.MimeType, o.Size).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apierr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update object: %w", err)
	}
	return nil
}

// DeleteObject cascades to children via the FK's ON DELETE CASCADE.
// When clearEmptyParents is set, each ancestor that becomes childless
// as a result is deleted in turn, up to (but not including) the
// bucket root.
func (s *Store) DeleteObject(ctx context.Context, bucketID, id string, clearEmptyParents bool) error {
	var parentID *string
	err := s.pool.QueryRow(ctx, `SELECT parent_id FROM objects WHERE bucket_id=$1 AND id=$2`, bucketID, id).Scan(&parentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apierr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup object parent: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM objects WHERE bucket_id=$1 AND id=$2`, bucketID, id)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.ErrNotFound
	}

	if !clearEmptyParents {
		return nil
	}

	for parentID != nil {
		var childCount int
		if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM objects WHERE parent_id=$1`, *parentID).Scan(&childCount); err != nil {
			return fmt.Errorf("count parent children: %w", err)
		}
		if childCount > 0 {
			return nil
		}

		var nextParent *string
		err := s.pool.QueryRow(ctx, `DELETE FROM objects WHERE id=$1 RETURNING parent_id`, *parentID).Scan(&nextParent)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete empty parent: %w", err)
		}
		parentID = nextParent
	}
	return nil
}

func (s *Store) AggregateBucketUsage(ctx context.Context, bucketID string) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(size), 0) FROM objects WHERE bucket_id=$1 AND mime_type <> 'folder'`, bucketID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("aggregate bucket usage: %w", err)
	}
	return total, nil
}

func (s *Store) AggregateUserUsage(ctx context.Context, userID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(o.size), 0) FROM objects o
	           JOIN buckets b ON b.id = o.bucket_id
	           WHERE b.owner_id = $1 AND o.mime_type <> 'folder'`
	var total int64
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("aggregate user usage: %w", err)
	}
	return total, nil
}

// ObjectKey walks the parent chain, one query per ancestor, to build
// the slash-joined key identifying id within bucketID.
func (s *Store) ObjectKey(ctx context.Context, bucketID, id string) (string, error) {
	var segments []string
	curID := &id
	for curID != nil {
		var filename string
		var parentID *string
		err := s.pool.QueryRow(ctx, `SELECT filename, parent_id FROM objects WHERE bucket_id=$1 AND id=$2`, bucketID, *curID).Scan(&filename, &parentID)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apierr.ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("walk object key: %w", err)
		}
		segments = append([]string{filename}, segments...)
		curID = parentID
	}
	return strings.Join(segments, "/"), nil
}
