package postgres

import (
	"context"
	"testing"

	"github.com/marmos91/byteserve/pkg/config"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metadata/storetest"
)

// setupTestStore opens a new Store (and pool) per subtest against the
// shared TestMain container; AutoMigrate is a no-op once the schema
// is current.
// Suite assertions are scoped by freshly generated UUIDs per subtest,
// so data sharing the same schema across subtests doesn't collide.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), config.DatabaseConfig{
		DSN:          sharedDSN,
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("failed to open postgres store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSuite(t *testing.T) {
	storetest.Suite(t, func(t *testing.T) metadata.Store {
		return setupTestStore(t)
	})
}
