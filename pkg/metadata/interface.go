package metadata

import "context"

// Store is the durable catalog of users, buckets, objects, credentials,
// bucket config, and per-day stats. Every operation must be atomic
// against concurrent callers; see pkg/metadata/postgres for the
// production implementation and pkg/metadata/memory for the
// in-process implementation used by tests and the conformance suite
// in pkg/metadata/storetest.
type Store interface {
	UserStore
	BucketStore
	ObjectStore
	CredentialStore
	BucketConfigStore
	StatsStore

	// Healthcheck verifies the store can serve requests.
	Healthcheck(ctx context.Context) error

	// Close releases any resources (connection pools, etc).
	Close() error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*User, error)
}

type BucketStore interface {
	CreateBucket(ctx context.Context, b *Bucket) error
	FindBucketByID(ctx context.Context, id string) (*Bucket, error)
	// FindBucketByName returns the bucket with the given globally
	// unique name, or ErrNotFound.
	FindBucketByName(ctx context.Context, name string) (*Bucket, error)
	UpdateBucket(ctx context.Context, b *Bucket) error
	// DeleteBucket cascades to all Objects; callers are responsible
	// for also removing the corresponding blobs (pkg/blobstore).
	DeleteBucket(ctx context.Context, id string) error
	ListBucketsByOwner(ctx context.Context, ownerID string) ([]*Bucket, error)
	ListAllBuckets(ctx context.Context) ([]*Bucket, error)
}

type ObjectStore interface {
	// FindObjectInDir returns the unique child of parentID with the
	// given filename, or ErrNotFound. parentID == nil means the
	// bucket root.
	FindObjectInDir(ctx context.Context, bucketID string, parentID *string, filename string) (*Object, error)

	FindObjectByID(ctx context.Context, bucketID, id string) (*Object, error)

	ListChildren(ctx context.Context, bucketID string, parentID *string, filter ChildFilter, order ChildOrder, limit int, cursor string) ([]*Object, string, error)

	// ListObjectsRecursively returns every non-folder Object under the
	// bucket whose full slash-joined key begins with prefix, used by
	// the S3 list handlers.
	ListObjectsRecursively(ctx context.Context, bucketID, prefix string) ([]*Object, error)

	// CreateObject enforces (bucketID, parentID, filename) uniqueness
	// at the database level; on conflict it returns the existing row
	// rather than an error (findOrCreate semantics).
	CreateObject(ctx context.Context, bucketID string, parentID *string, filename, mimeType string, size int64) (*Object, error)

	UpdateObject(ctx context.Context, o *Object) error

	// DeleteObject cascades to children. If clearEmptyParents is true
	// and the parent becomes empty as a result, the parent is deleted
	// recursively up to the bucket root.
	DeleteObject(ctx context.Context, bucketID, id string, clearEmptyParents bool) error

	// AggregateBucketUsage and AggregateUserUsage sum Size over every non-folder Object owned
	// (directly, for a bucket) or transitively (for a user, across
	// all their buckets) by the given scope.
	AggregateBucketUsage(ctx context.Context, bucketID string) (int64, error)
	AggregateUserUsage(ctx context.Context, userID string) (int64, error)

	// ObjectKey walks the ParentID chain to build the slash-joined key.
	ObjectKey(ctx context.Context, bucketID, id string) (string, error)
}

type CredentialStore interface {
	CreateAPIToken(ctx context.Context, t *ApiToken) error
	FindAPITokenByToken(ctx context.Context, token string) (*ApiToken, error)
	DeleteAPIToken(ctx context.Context, id string) error
	ListAPITokens(ctx context.Context, userID string) ([]*ApiToken, error)

	CreateS3Credential(ctx context.Context, c *S3Credential) error
	FindS3CredentialByAccessKey(ctx context.Context, accessKey string) (*S3Credential, error)
	DeleteS3Credential(ctx context.Context, id string) error
	ListS3Credentials(ctx context.Context, userID string) ([]*S3Credential, error)
}

type BucketConfigStore interface {
	GetBucketConfig(ctx context.Context, bucketID string) ([]*BucketConfig, error)
	SetBucketConfig(ctx context.Context, bucketID, key, value string, valueType ConfigValueType) error
}

type StatsStore interface {
	// FlushStats merges a batch of per-bucket, per-day deltas into the
	// durable catalog. Called periodically by the stats aggregator (C6).
	FlushStats(ctx context.Context, deltas []DayStats) error
	GetStats(ctx context.Context, bucketID, day string) (*DayStats, error)
}
