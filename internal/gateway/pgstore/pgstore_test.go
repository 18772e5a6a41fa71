package pgstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/migrations"
	"github.com/yigit/unilife/internal/config"
	"github.com/yigit/unilife/internal/db"
	"github.com/yigit/unilife/internal/gateway"
)

// Runs against a live database configured through the DB_* variables when
// UNILIFE_PG_TEST is set.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("UNILIFE_PG_TEST") == "" {
		t.Skip("UNILIFE_PG_TEST not set")
	}
	t.Setenv("AUTH_SECRET", "test")
	t.Setenv("BACKEND_DRIVER", config.DriverPostgres)
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	database, err := db.NewPostgresDB(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if err := migrations.NewMigrator(database.Pool, zerolog.Nop()).Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	store := New(database, 100*time.Millisecond, zerolog.Nop())
	t.Cleanup(func() {
		store.Close()
		database.Close()
	})
	return store
}

func TestPostgresStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	collection := "test_" + uuid.NewString()[:8]

	snaps := make(chan []gateway.Document, 16)
	unsub := store.Subscribe(gateway.Collection(collection).OrderByDesc("createdAt"),
		func(docs []gateway.Document) { snaps <- docs }, nil)
	defer unsub()

	if err := store.SetAt(ctx, collection, "a", map[string]any{"createdAt": "2025-01-01T00:00:00.000Z", "members": []string{}}); err != nil {
		t.Fatalf("SetAt failed: %v", err)
	}
	if err := store.SetAt(ctx, collection, "b", map[string]any{"createdAt": "2025-02-01T00:00:00.000Z"}); err != nil {
		t.Fatalf("SetAt failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case docs := <-snaps:
			if len(docs) == 2 {
				if docs[0].ID != "b" {
					t.Errorf("Expected b first, got %s", docs[0].ID)
				}
				done = true
			}
		case <-deadline:
			t.Fatal("Timed out waiting for notification")
		}
	}

	var wg sync.WaitGroup
	for _, member := range []string{"u1", "u2", "u3", "u1"} {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			if err := store.UpdateFields(ctx, collection, "a", map[string]any{"members": gateway.ArrayUnion(member)}); err != nil {
				t.Errorf("UpdateFields failed: %v", err)
			}
		}(member)
	}
	wg.Wait()

	doc, err := store.GetOne(ctx, collection, "a")
	if err != nil {
		t.Fatalf("GetOne failed: %v", err)
	}
	if got := len(doc.Data["members"].([]any)); got != 3 {
		t.Errorf("Expected 3 members, got %d", got)
	}

	err = store.UpdateFields(ctx, collection, "a", map[string]any{"x": 1}, gateway.IfVersion(1))
	if !errors.Is(err, gateway.ErrVersionConflict) {
		t.Errorf("Expected ErrVersionConflict, got %v", err)
	}
}
