// Package memory implements pkg/metadata.Store entirely in process
// memory, grounded on the teacher's pkg/metadata/store/memory
// package. Used by the storetest conformance suite and by handler
// tests that don't need a real Postgres instance.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

// Store is an in-memory metadata.Store implementation, safe for
// concurrent use.
type Store struct {
	mu sync.RWMutex

	users    map[string]*metadata.User
	buckets  map[string]*metadata.Bucket
	objects  map[string]*metadata.Object
	tokens   map[string]*metadata.ApiToken
	s3Creds  map[string]*metadata.S3Credential
	bktCfg   map[string]map[string]*metadata.BucketConfig // bucketID -> key -> cfg
	dayStats map[string]*metadata.DayStats                // bucketID|day -> stats
}

var _ metadata.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		users:    map[string]*metadata.User{},
		buckets:  map[string]*metadata.Bucket{},
		objects:  map[string]*metadata.Object{},
		tokens:   map[string]*metadata.ApiToken{},
		s3Creds:  map[string]*metadata.S3Credential{},
		bktCfg:   map[string]map[string]*metadata.BucketConfig{},
		dayStats: map[string]*metadata.DayStats{},
	}
}

func (s *Store) Healthcheck(ctx context.Context) error { return nil }
func (s *Store) Close() error                          { return nil }

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, u *metadata.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*metadata.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apierr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*metadata.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apierr.ErrNotFound
}

func (s *Store) UpdateUser(ctx context.Context, u *metadata.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return apierr.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return apierr.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*metadata.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*metadata.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// --- Buckets ---

func (s *Store) CreateBucket(ctx context.Context, b *metadata.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	s.buckets[b.ID] = &cp
	return nil
}

func (s *Store) FindBucketByID(ctx context.Context, id string) (*metadata.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[id]
	if !ok {
		return nil, apierr.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) FindBucketByName(ctx context.Context, name string) (*metadata.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.buckets {
		if b.Name == name {
			cp := *b
			return &cp, nil
		}
	}
	return nil, apierr.ErrNotFound
}

func (s *Store) UpdateBucket(ctx context.Context, b *metadata.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[b.ID]; !ok {
		return apierr.ErrNotFound
	}
	b.UpdatedAt = time.Now()
	cp := *b
	s.buckets[b.ID] = &cp
	return nil
}

func (s *Store) DeleteBucket(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[id]; !ok {
		return apierr.ErrNotFound
	}
	delete(s.buckets, id)
	for oid, o := range s.objects {
		if o.BucketID == id {
			delete(s.objects, oid)
		}
	}
	delete(s.bktCfg, id)
	return nil
}

func (s *Store) ListBucketsByOwner(ctx context.Context, ownerID string) ([]*metadata.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*metadata.Bucket
	for _, b := range s.buckets {
		if b.OwnerID == ownerID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListAllBuckets(ctx context.Context) ([]*metadata.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*metadata.Bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Objects ---

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Store) FindObjectInDir(ctx context.Context, bucketID string, parentID *string, filename string) (*metadata.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.objects {
		if o.BucketID == bucketID && sameParent(o.ParentID, parentID) && o.Filename == filename {
			cp := *o
			return &cp, nil
		}
	}
	return nil, apierr.ErrNotFound
}

func (s *Store) FindObjectByID(ctx context.Context, bucketID, id string) (*metadata.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	if !ok || o.BucketID != bucketID {
		return nil, apierr.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) ListChildren(ctx context.Context, bucketID string, parentID *string, filter metadata.ChildFilter, order metadata.ChildOrder, limit int, cursor string) ([]*metadata.Object, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*metadata.Object
	for _, o := range s.objects {
		if o.BucketID != bucketID || !sameParent(o.ParentID, parentID) {
			continue
		}
		if filter.FoldersOnly && !o.IsFolder() {
			continue
		}
		if filter.FilenamePrefix != "" && !strings.HasPrefix(o.Filename, filter.FilenamePrefix) {
			continue
		}
		cp := *o
		matched = append(matched, &cp)
	}

	if order == metadata.OrderByUpdatedAt {
		sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.Before(matched[j].UpdatedAt) })
	} else {
		sort.Slice(matched, func(i, j int) bool { return matched[i].Filename < matched[j].Filename })
	}

	if cursor != "" {
		var filtered []*metadata.Object
		for _, o := range matched {
			if o.Filename > cursor {
				filtered = append(filtered, o)
			}
		}
		matched = filtered
	}

	var next string
	if limit > 0 && len(matched) > limit {
		next = matched[limit-1].Filename
		matched = matched[:limit]
	}
	return matched, next, nil
}

func (s *Store) objectKeyLocked(bucketID, id string) (string, error) {
	var segments []string
	curID := &id
	for curID != nil {
		o, ok := s.objects[*curID]
		if !ok || o.BucketID != bucketID {
			return "", apierr.ErrNotFound
		}
		segments = append([]string{o.Filename}, segments...)
		curID = o.ParentID
	}
	return strings.Join(segments, "/"), nil
}

func (s *Store) ListObjectsRecursively(ctx context.Context, bucketID, prefix string) ([]*metadata.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.Object
	for _, o := range s.objects {
		if o.BucketID != bucketID || o.IsFolder() {
			continue
		}
		key, err := s.objectKeyLocked(bucketID, o.ID)
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, _ := s.objectKeyLocked(bucketID, out[i].ID)
		kj, _ := s.objectKeyLocked(bucketID, out[j].ID)
		return ki < kj
	})
	return out, nil
}

func (s *Store) CreateObject(ctx context.Context, bucketID string, parentID *string, filename, mimeType string, size int64) (*metadata.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.objects {
		if o.BucketID == bucketID && sameParent(o.ParentID, parentID) && o.Filename == filename {
			cp := *o
			return &cp, nil
		}
	}

	now := time.Now()
	o := &metadata.Object{
		ID:        uuid.NewString(),
		BucketID:  bucketID,
		ParentID:  parentID,
		Filename:  filename,
		MimeType:  mimeType,
		Size:      size,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.objects[o.ID] = o
	cp := *o
	return &cp, nil
}

func (s *Store) UpdateObject(ctx context.Context, o *metadata.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[o.ID]; !ok {
		return apierr.ErrNotFound
	}
	o.UpdatedAt = time.Now()
	cp := *o
	s.objects[o.ID] = &cp
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, bucketID, id string, clearEmptyParents bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[id]
	if !ok || o.BucketID != bucketID {
		return apierr.ErrNotFound
	}
	parentID := o.ParentID

	s.deleteSubtreeLocked(id)

	if !clearEmptyParents {
		return nil
	}

	for parentID != nil {
		hasChildren := false
		for _, child := range s.objects {
			if child.ParentID != nil && *child.ParentID == *parentID {
				hasChildren = true
				break
			}
		}
		if hasChildren {
			return nil
		}
		parent, ok := s.objects[*parentID]
		if !ok {
			return nil
		}
		next := parent.ParentID
		delete(s.objects, *parentID)
		parentID = next
	}
	return nil
}

func (s *Store) deleteSubtreeLocked(id string) {
	delete(s.objects, id)
	for cid, c := range s.objects {
		if c.ParentID != nil && *c.ParentID == id {
			s.deleteSubtreeLocked(cid)
		}
	}
}

func (s *Store) AggregateBucketUsage(ctx context.Context, bucketID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, o := range s.objects {
		if o.BucketID == bucketID && !o.IsFolder() {
			total += o.Size
		}
	}
	return total, nil
}

func (s *Store) AggregateUserUsage(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := map[string]struct{}{}
	for _, b := range s.buckets {
		if b.OwnerID == userID {
			owned[b.ID] = struct{}{}
		}
	}
	var total int64
	for _, o := range s.objects {
		if _, ok := owned[o.BucketID]; ok && !o.IsFolder() {
			total += o.Size
		}
	}
	return total, nil
}

func (s *Store) ObjectKey(ctx context.Context, bucketID, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objectKeyLocked(bucketID, id)
}

// --- Credentials ---

func (s *Store) CreateAPIToken(ctx context.Context, t *metadata.ApiToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.CreatedAt = time.Now()
	cp := *t
	s.tokens[t.ID] = &cp
	return nil
}

func (s *Store) FindAPITokenByToken(ctx context.Context, token string) (*metadata.ApiToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apierr.ErrNotFound
}

func (s *Store) DeleteAPIToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return apierr.ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (s *Store) ListAPITokens(ctx context.Context, userID string) ([]*metadata.ApiToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*metadata.ApiToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CreateS3Credential(ctx context.Context, c *metadata.S3Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.CreatedAt = time.Now()
	cp := *c
	cp.BucketAccess = cloneSet(c.BucketAccess)
	s.s3Creds[c.ID] = &cp
	return nil
}

func (s *Store) FindS3CredentialByAccessKey(ctx context.Context, accessKey string) (*metadata.S3Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.s3Creds {
		if c.AccessKey == accessKey {
			cp := *c
			cp.BucketAccess = cloneSet(c.BucketAccess)
			return &cp, nil
		}
	}
	return nil, apierr.ErrNotFound
}

func (s *Store) DeleteS3Credential(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.s3Creds[id]; !ok {
		return apierr.ErrNotFound
	}
	delete(s.s3Creds, id)
	return nil
}

func (s *Store) ListS3Credentials(ctx context.Context, userID string) ([]*metadata.S3Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*metadata.S3Credential
	for _, c := range s.s3Creds {
		if c.UserID == userID {
			cp := *c
			cp.BucketAccess = cloneSet(c.BucketAccess)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

// --- Bucket config ---

func (s *Store) GetBucketConfig(ctx context.Context, bucketID string) ([]*metadata.BucketConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.bktCfg[bucketID]
	if !ok {
		return nil, nil
	}
	out := make([]*metadata.BucketConfig, 0, len(m))
	for _, c := range m {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) SetBucketConfig(ctx context.Context, bucketID, key, value string, valueType metadata.ConfigValueType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.bktCfg[bucketID]
	if !ok {
		m = map[string]*metadata.BucketConfig{}
		s.bktCfg[bucketID] = m
	}
	m[key] = &metadata.BucketConfig{BucketID: bucketID, Key: key, Value: value, Type: valueType}
	return nil
}

// --- Stats ---

func statsKey(bucketID, day string) string { return bucketID + "|" + day }

func (s *Store) FlushStats(ctx context.Context, deltas []metadata.DayStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deltas {
		key := statsKey(d.BucketID, d.Day)
		cur, ok := s.dayStats[key]
		if !ok {
			cp := d
			s.dayStats[key] = &cp
			continue
		}
		cur.APIRequests += d.APIRequests
		cur.S3Requests += d.S3Requests
		cur.WebDAVReqs += d.WebDAVReqs
		cur.RequestsCount += d.RequestsCount
		cur.BytesServed += d.BytesServed
	}
	return nil
}

func (s *Store) GetStats(ctx context.Context, bucketID, day string) (*metadata.DayStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dayStats[statsKey(bucketID, day)]
	if !ok {
		return nil, apierr.ErrNotFound
	}
	cp := *d
	return &cp, nil
}
