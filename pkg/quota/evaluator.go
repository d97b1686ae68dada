// Package quota checks whether a write of a given size would exceed
// either a bucket's or its owner's storage quota, grounded on C1's
// AggregateBucketUsage/AggregateUserUsage.
package quota

import (
	"context"
	"fmt"

	"github.com/marmos91/byteserve/pkg/metadata"
)

// Evaluator checks storage quotas against the metadata store's usage
// aggregates.
type Evaluator struct {
	store metadata.Store
}

// New returns an Evaluator backed by store.
func New(store metadata.Store) *Evaluator {
	return &Evaluator{store: store}
}

// Check reports whether incrementBytes can be written to bucket
// without exceeding the bucket's own quota or its owner's account-wide
// quota. Both checks use the Unlimited (-1) sentinel to mean "no
// limit"; folder Objects are excluded from both sums by C1.
func (e *Evaluator) Check(ctx context.Context, bucket *metadata.Bucket, owner *metadata.User, incrementBytes int64) (bool, error) {
	if bucket.StorageQuota != metadata.Unlimited {
		used, err := e.store.AggregateBucketUsage(ctx, bucket.ID)
		if err != nil {
			return false, fmt.Errorf("quota: aggregate bucket usage: %w", err)
		}
		if used+incrementBytes > bucket.StorageQuota {
			return false, nil
		}
	}

	if owner.StorageQuota != metadata.Unlimited {
		used, err := e.store.AggregateUserUsage(ctx, owner.ID)
		if err != nil {
			return false, fmt.Errorf("quota: aggregate user usage: %w", err)
		}
		if used+incrementBytes > owner.StorageQuota {
			return false, nil
		}
	}

	return true, nil
}
