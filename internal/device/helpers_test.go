package device

import (
	"context"
	"testing"

	"github.com/nerrad567/printlink-core/internal/infrastructure/database"
	_ "github.com/nerrad567/printlink-core/migrations"
)

const testDeviceID = "01S00C123456789"

// openTestDB returns a migrated in-memory database closed at test cleanup.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
