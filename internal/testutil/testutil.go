// Package testutil provides shared test helpers: temporary databases and
// inboxes, an in-memory catalog and a scripted translator.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/mdpub/internal/localcatalog"
	"github.com/starford/mdpub/internal/storage"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *localcatalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mdpub-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := localcatalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary inbox directory with a storage.Provider.
func TestInbox(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
