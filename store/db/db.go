package db

import (
	"github.com/pkg/errors"

	"github.com/vocadrill/vocadrill/internal/profile"
	"github.com/vocadrill/vocadrill/store"
	"github.com/vocadrill/vocadrill/store/db/postgres"
	"github.com/vocadrill/vocadrill/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// This project supports only SQLite and PostgreSQL databases.
//
// SQLite: Default driver. A personal vocabulary deck is small and a single
// file database keeps setup at zero.
// PostgreSQL: Full support for deployments shared across devices.
// MySQL: NOT SUPPORTED.
//
// When adding new features:
// - Implement for both SQLite and PostgreSQL
// - Keep driver-specific SQL inside the driver packages
// - Do NOT add MySQL support under any circumstances
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'sqlite' and 'postgres' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
