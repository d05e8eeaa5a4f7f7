// Package repotest opens migrated in-memory SQLite clients for tests.
package repotest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// Open returns a client on a fresh in-memory database named after the
// test. The database is closed when the test ends.
func Open(t testing.TB) *repo.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Shared-cache in-memory databases do not tolerate concurrent writers.
	db.SetMaxOpenConns(1)

	client := repo.NewClient(repo.Driver(entsql.OpenDB(dialect.SQLite, db)))
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}
