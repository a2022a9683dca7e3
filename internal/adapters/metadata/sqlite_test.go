package metadata

import (
	"errors"
	"os"
	"testing"

	"github.com/gemhutch/registry/internal/core/models"
	"github.com/gemhutch/registry/internal/core/services"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	store, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustUpsert(t *testing.T, store *SQLiteStore, name, version string) {
	t.Helper()
	if err := store.Upsert(models.Record{Name: name, Version: version, ContentHash: "hash-" + version}); err != nil {
		t.Fatalf("Upsert(%s@%s): %v", name, version, err)
	}
}

func TestUpsertAndGetExact(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(models.Record{
		Name:         "rack",
		Version:      "2.2.4",
		Authors:      []string{"Leah Neukirchen"},
		Summary:      "a modular webserver interface",
		Dependencies: []models.Dependency{{Name: "webrick", Requirement: ">= 0"}},
		ContentHash:  "abc123",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rec, err := store.GetExact("rack", "2.2.4")
	if err != nil {
		t.Fatalf("GetExact: %v", err)
	}
	if rec.Platform != "ruby" {
		t.Errorf("platform = %q, want default %q", rec.Platform, "ruby")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if len(rec.Dependencies) != 1 || rec.Dependencies[0].Name != "webrick" {
		t.Errorf("dependencies = %v", rec.Dependencies)
	}
}

func TestGetExactNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetExact("missing", "1.0.0")
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertOverwritesRecord(t *testing.T) {
	store := newTestStore(t)

	mustUpsert(t, store, "rack", "2.2.4")
	original, err := store.GetExact("rack", "2.2.4")
	if err != nil {
		t.Fatalf("GetExact: %v", err)
	}

	err = store.Upsert(models.Record{Name: "rack", Version: "2.2.4", Summary: "updated", ContentHash: "newhash"})
	if err != nil {
		t.Fatalf("Upsert overwrite: %v", err)
	}

	rec, err := store.GetExact("rack", "2.2.4")
	if err != nil {
		t.Fatalf("GetExact after overwrite: %v", err)
	}
	if rec.Summary != "updated" || rec.ContentHash != "newhash" {
		t.Errorf("overwrite not applied: %+v", rec)
	}
	if !rec.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt changed on overwrite: %v -> %v", original.CreatedAt, rec.CreatedAt)
	}

	versions, err := store.ListVersions("rack")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("expected 1 record after overwrite, got %d", len(versions))
	}
}

func TestUpsertDistinctPlatforms(t *testing.T) {
	store := newTestStore(t)

	store.Upsert(models.Record{Name: "nokogiri", Version: "1.15.0", Platform: "ruby", ContentHash: "h1"})
	store.Upsert(models.Record{Name: "nokogiri", Version: "1.15.0", Platform: "x86_64-linux", ContentHash: "h2"})

	versions, err := store.ListVersions("nokogiri")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 platform records, got %d", len(versions))
	}

	// The default platform wins an exact lookup.
	rec, err := store.GetExact("nokogiri", "1.15.0")
	if err != nil {
		t.Fatalf("GetExact: %v", err)
	}
	if rec.Platform != "ruby" {
		t.Errorf("platform = %q, want %q", rec.Platform, "ruby")
	}
}

func TestListVersionsOrdering(t *testing.T) {
	store := newTestStore(t)

	mustUpsert(t, store, "rake", "1.2.0")
	mustUpsert(t, store, "rake", "1.10.0")
	mustUpsert(t, store, "rake", "1.3.0")

	versions, err := store.ListVersions("rake")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}

	var got []string
	for _, rec := range versions {
		got = append(got, rec.Version)
	}
	want := []string{"1.10.0", "1.3.0", "1.2.0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("versions = %v, want %v", got, want)
		}
	}
}

func TestListVersionsUnknownName(t *testing.T) {
	store := newTestStore(t)

	versions, err := store.ListVersions("nonexistent")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("expected empty slice, got %d records", len(versions))
	}
}

func TestGetLatest(t *testing.T) {
	store := newTestStore(t)

	mustUpsert(t, store, "foo", "1.0.0")
	mustUpsert(t, store, "foo", "2.0.0")

	latest, err := store.GetLatest("foo")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.Version != "2.0.0" {
		t.Errorf("latest = %q, want %q", latest.Version, "2.0.0")
	}
}

func TestGetLatestNumericOrdering(t *testing.T) {
	store := newTestStore(t)

	mustUpsert(t, store, "foo", "1.9.0")
	mustUpsert(t, store, "foo", "1.10.0")

	latest, err := store.GetLatest("foo")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.Version != "1.10.0" {
		t.Errorf("latest = %q, want %q (numeric component compare)", latest.Version, "1.10.0")
	}
}

func TestGetLatestNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetLatest("missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListAllOrdering(t *testing.T) {
	store := newTestStore(t)

	mustUpsert(t, store, "zeta", "1.0.0")
	mustUpsert(t, store, "alpha", "1.0.0")
	mustUpsert(t, store, "alpha", "2.0.0")

	records, err := store.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Name != "alpha" || records[0].Version != "2.0.0" {
		t.Errorf("records[0] = %s@%s, want alpha@2.0.0", records[0].Name, records[0].Version)
	}
	if records[1].Name != "alpha" || records[1].Version != "1.0.0" {
		t.Errorf("records[1] = %s@%s, want alpha@1.0.0", records[1].Name, records[1].Version)
	}
	if records[2].Name != "zeta" {
		t.Errorf("records[2] = %s, want zeta", records[2].Name)
	}
}

func TestIncrementDownload(t *testing.T) {
	store := newTestStore(t)

	mustUpsert(t, store, "rack", "2.2.4")

	for i := 0; i < 3; i++ {
		if err := store.IncrementDownload("rack", "2.2.4"); err != nil {
			t.Fatalf("IncrementDownload: %v", err)
		}
	}
	// Bumping an unknown record is a no-op, not an error.
	if err := store.IncrementDownload("missing", "1.0.0"); err != nil {
		t.Fatalf("IncrementDownload unknown: %v", err)
	}

	rec, err := store.GetExact("rack", "2.2.4")
	if err != nil {
		t.Fatalf("GetExact: %v", err)
	}
	if rec.DownloadCount != 3 {
		t.Errorf("download count = %d, want 3", rec.DownloadCount)
	}
}

func TestIncrementDownloadPreservedOnOverwrite(t *testing.T) {
	store := newTestStore(t)

	mustUpsert(t, store, "rack", "2.2.4")
	store.IncrementDownload("rack", "2.2.4")
	mustUpsert(t, store, "rack", "2.2.4")

	rec, err := store.GetExact("rack", "2.2.4")
	if err != nil {
		t.Fatalf("GetExact: %v", err)
	}
	if rec.DownloadCount != 1 {
		t.Errorf("download count = %d, want 1 after overwrite", rec.DownloadCount)
	}
}

func TestSearchNames(t *testing.T) {
	store := newTestStore(t)

	mustUpsert(t, store, "rails", "7.0.0")
	mustUpsert(t, store, "rails", "7.1.0")
	mustUpsert(t, store, "railties", "7.0.0")
	mustUpsert(t, store, "rack", "2.2.4")

	names, err := store.SearchNames("rail")
	if err != nil {
		t.Fatalf("SearchNames: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
	if names[0] != "rails" || names[1] != "railties" {
		t.Errorf("names = %v", names)
	}
}

func TestSQLiteStoreDataDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	store.Close()

	// Verify the database file was created.
	if _, err := os.Stat(dir + "/registry.db"); os.IsNotExist(err) {
		t.Error("expected registry.db to exist")
	}
}
