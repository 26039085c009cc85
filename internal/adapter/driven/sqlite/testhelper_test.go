package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// setupTestDB opens a migrated, named in-memory store. cache=shared lets the
// writer and reader pools see the same database; the test name keeps parallel
// tests apart.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()))

	writer, err := openPool(context.Background(), dsn, 1)
	if err != nil {
		t.Fatalf("open test writer: %v", err)
	}
	reader, err := openPool(context.Background(), dsn, defaultReaders)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("open test reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: t.Name()}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

// fixedNow is the clock used by test repos.
var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestRepo returns a RunRepo over a fresh database with a fixed clock.
func setupTestRepo(t *testing.T) *RunRepo {
	t.Helper()
	repo := NewRunRepo(setupTestDB(t))
	repo.now = func() time.Time { return fixedNow }
	return repo
}

// seedRepository saves ref so runs referencing it satisfy the foreign key.
func seedRepository(t *testing.T, r *RunRepo, ref model.RepositoryRef) {
	t.Helper()
	if err := r.SaveRepository(context.Background(), ref); err != nil {
		t.Fatalf("seed repository %s: %v", ref.FullName(), err)
	}
}
