package memory_test

import (
	"testing"

	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metadata/memory"
	"github.com/marmos91/byteserve/pkg/metadata/storetest"
)

func TestSuite(t *testing.T) {
	storetest.Suite(t, func(t *testing.T) metadata.Store {
		return memory.New()
	})
}
