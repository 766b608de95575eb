package testutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitrine-imob/vitrine/internal/db"
)

// OpenSharedDB creates a migrated database for a whole test binary, for
// packages whose handlers bind their dependencies once. Call the returned
// cleanup after m.Run.
func OpenSharedDB(prefix string) (*db.DB, func(), error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("create temp dir: %w", err)
	}
	database, err := db.New(filepath.Join(dir, "test.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}
	cleanup := func() {
		_ = database.Close()
		_ = os.RemoveAll(dir)
	}
	return database, cleanup, nil
}
