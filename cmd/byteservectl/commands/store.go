// Package commands implements byteservectl's cobra subcommands. Every
// command opens pkg/metadata.Store directly and operates on it, the
// same way the core server does — there is no admin HTTP API to go
// through.
package commands

import (
	"context"

	"github.com/marmos91/byteserve/pkg/config"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metadata/memory"
	"github.com/marmos91/byteserve/pkg/metadata/postgres"
)

// openStore loads the config named by --config and connects to its
// metadata store, or returns an in-memory store when --memory was
// passed (useful for trying subcommands without a Postgres instance).
func openStore(ctx context.Context) (metadata.Store, error) {
	if useMemory {
		return memory.New(), nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return postgres.New(ctx, cfg.Database)
}
