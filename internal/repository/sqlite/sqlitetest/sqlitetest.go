// Package sqlitetest opens migrated, seeded in-memory stores for tests.
package sqlitetest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/garnizeh/flyaway/db"
	dbpkg "github.com/garnizeh/flyaway/internal/db"
	"github.com/garnizeh/flyaway/internal/repository/sqlite"
	"github.com/garnizeh/flyaway/pkg/models"
)

// New returns a repository over a fresh in-memory database private to t.
// The database is closed when the test ends.
func New(t testing.TB) *sqlite.SQLiteRepo {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_", "?", "_").Replace(t.Name())
	d, err := dbpkg.New(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := dbpkg.Migrate(ctx, d, db.Migrations, db.SeedFiles); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	return sqlite.New(d, nil)
}

// User inserts a user with the given email and returns its id.
func User(t testing.TB, repo *sqlite.SQLiteRepo, email string) int64 {
	t.Helper()

	id, err := repo.CreateUser(context.Background(), &models.User{Name: email, Email: email, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("CreateUser(%s) error: %v", email, err)
	}
	return id
}

// TypeID returns the id of a seeded species type.
func TypeID(t testing.TB, repo *sqlite.SQLiteRepo, name string) int64 {
	t.Helper()

	types, err := repo.ListSpeciesTypes(context.Background())
	if err != nil {
		t.Fatalf("ListSpeciesTypes error: %v", err)
	}
	for _, st := range types {
		if st.Name == name {
			return st.ID
		}
	}
	t.Fatalf("species type %q not seeded", name)
	return 0
}
