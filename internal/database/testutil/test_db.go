package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/database"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	migrate bool
}

// WithMigrations applies the schema (tables and partial indexes) after opening.
func WithMigrations() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
	}
}

// MustOpenTestDB opens a private in-memory SQLite database for tests. Each call
// gets its own named database so tests never share rows.
// The returned connection is automatically closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString()),
	})
	require.NoError(t, err)

	if cfg.migrate {
		require.NoError(t, database.Migrate(db))
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})

	return db
}
