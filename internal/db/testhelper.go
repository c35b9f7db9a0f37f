package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a metastore in t.TempDir() with the same hardened
// write/read pool pair the server uses and migrates it to the current
// schema: datasets, revisions, fact columns, dimensions and their owned
// lookup-table rows (with the dimension to lookup-table cascade the
// binder tests rely on).
//
// Tests with no use for the read/write split pass writeDB everywhere.
// Closing both pools is registered on t.
func OpenTestSQLite(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()

	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "meta.sqlite"), 4)
	if err != nil {
		t.Fatalf("open metastore: %v", err)
	}
	t.Cleanup(func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	})

	if err := RunMigrations(writeDB); err != nil {
		t.Fatalf("migrate metastore: %v", err)
	}

	return writeDB, readDB
}
