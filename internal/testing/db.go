// Package testing provides shared test helpers for the coinkeeper project.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/avelis/coinkeeper/internal/database"
)

// NewTestDB creates a throwaway SQLite database with its schema applied.
// The file lives under t.TempDir() and is closed automatically when the test
// finishes. Real files are used instead of :memory: because the connection
// pool would otherwise hand each connection its own empty database.
//
// Supported names: "ledger", "plans", "cache". The name selects both the
// schema and the pragma profile, matching production wiring.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	profile := database.ProfileStandard
	switch name {
	case "ledger":
		profile = database.ProfileLedger
	case "cache":
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to open test database %s: %v", name, err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db
}
