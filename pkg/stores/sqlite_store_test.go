package stores

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/CrazyDubya/Loop/pkg/loop"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("health check passed before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("NewSQLiteStore() accepted an empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"loops", "sub_loops", "loop_classes"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestSQLiteStore_NullReferences(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	l := newLoop(0, loop.EpochNaive, "o", "k")
	mustCreate(t, store, l)

	var parent, class sql.NullString
	err := store.db.QueryRowContext(ctx, `SELECT parent_id, class_id FROM loops WHERE id = ?`, l.ID).Scan(&parent, &class)
	if err != nil {
		t.Fatalf("query error = %v", err)
	}
	if parent.Valid || class.Valid {
		t.Errorf("empty references stored as %q, %q; want NULL", parent.String, class.String)
	}

	roots, err := store.ListLoops(ctx, LoopFilter{})
	if err != nil || len(roots) != 1 || roots[0].ParentID != "" {
		t.Errorf("ListLoops() = %v, %v", roots, err)
	}
}

func TestSQLiteStore_Persistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loops.db")
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendSQLite, Path: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	l := newLoop(0, loop.EpochSynthesis, "o", "k")
	mustCreate(t, s, l)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(ctx, Options{Backend: BackendSQLite, Path: path})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetLoop(ctx, l.ID)
	if err != nil || got.Epoch != loop.EpochSynthesis {
		t.Errorf("GetLoop() after reopen = %v, %v", got, err)
	}
}
