package metadata

import "time"

// Unlimited is the sentinel quota value meaning "no limit". It must
// never be treated as a real byte count in quota arithmetic.
const Unlimited int64 = -1

// FolderMimeType is the literal mimeType value that marks an Object as
// a directory rather than a file.
const FolderMimeType = "folder"

// BucketAccess is the access mode governing whether S3 reads/writes to
// a bucket require a bound SigV4 credential.
type BucketAccess string

const (
	AccessPrivate     BucketAccess = "private"
	AccessPublicRead  BucketAccess = "public-read"
	AccessPublicWrite BucketAccess = "public-write"
)

// User is an account that owns buckets and holds credentials.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Enabled      bool
	IsAdmin      bool
	StorageQuota int64 // bytes; Unlimited == -1
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Bucket is a top-level, globally-named namespace owned by one User.
type Bucket struct {
	ID           string
	Name         string
	OwnerID      string
	Access       BucketAccess
	StorageQuota int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Object is a file or folder node inside a bucket. A folder is an
// Object whose MimeType equals FolderMimeType; ParentID is nil for
// objects living at the bucket root.
type Object struct {
	ID        string
	BucketID  string
	ParentID  *string
	Filename  string
	MimeType  string
	Size      int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFolder reports whether this Object is a directory node.
func (o *Object) IsFolder() bool { return o.MimeType == FolderMimeType }

// ApiToken is a bearer token scoped to one user and all of that user's
// buckets.
type ApiToken struct {
	ID          string
	UserID      string
	Token       string
	Description string
	ExpiresAt   *time.Time
	IsAPI       bool
	CreatedAt   time.Time
}

// Expired reports whether the token has passed its expiry, if any.
func (t *ApiToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// S3Credential is a SigV4 access-key/secret pair scoped to a
// whitelisted set of buckets.
type S3Credential struct {
	ID           string
	UserID       string
	AccessKey    string
	SecretKey    string
	BucketAccess map[string]struct{} // set of bucket IDs
	CreatedAt    time.Time
}

// AllowsBucket reports whether this credential grants access to bucketID.
func (c *S3Credential) AllowsBucket(bucketID string) bool {
	_, ok := c.BucketAccess[bucketID]
	return ok
}

// ConfigValueType is the declared type of a BucketConfig value.
type ConfigValueType string

const (
	ConfigString  ConfigValueType = "STRING"
	ConfigNumber  ConfigValueType = "NUMBER"
	ConfigBoolean ConfigValueType = "BOOLEAN"
	ConfigSelect  ConfigValueType = "SELECT"
)

// BucketConfig is a single (key, value) setting attached to a bucket.
// Recognized keys are enumerated in internal/bucketconfig.
type BucketConfig struct {
	BucketID string
	Key      string
	Value    string
	Type     ConfigValueType
}

// DayStats is the per-bucket, per-UTC-day usage counters flushed
// periodically from the in-memory stats aggregator.
type DayStats struct {
	BucketID      string
	Day           string // YYYY-MM-DD, UTC
	APIRequests   int64
	S3Requests    int64
	WebDAVReqs    int64
	RequestsCount int64
	BytesServed   int64
}

// ChildFilter narrows ListChildren results.
type ChildFilter struct {
	// FoldersOnly, when true, restricts results to folder Objects.
	FoldersOnly bool
	// FilenamePrefix, when non-empty, restricts results to children
	// whose filename has this prefix.
	FilenamePrefix string
}

// ChildOrder controls ListChildren ordering.
type ChildOrder string

const (
	OrderByFilename  ChildOrder = "filename"
	OrderByUpdatedAt ChildOrder = "updated_at"
)
