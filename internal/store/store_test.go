package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/wheelcast/backend/internal/database/models"
)

// newTestDB opens a private in-memory SQLite database with the schema
// applied. bun runs the same queries against it as against postgres.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := db.ResetModel(ctx, (*models.Owner)(nil), (*models.Item)(nil)); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return db
}

func mustCreateOwner(t *testing.T, owners *OwnerStore, username string) models.Owner {
	t.Helper()

	owner, err := owners.Create(context.Background(), username, "hunter2", models.RoleUser)
	if err != nil {
		t.Fatalf("failed to create owner %q: %v", username, err)
	}
	return owner
}
