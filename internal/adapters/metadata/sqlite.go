package metadata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gemhutch/registry/internal/core/gemver"
	"github.com/gemhutch/registry/internal/core/models"
	"github.com/gemhutch/registry/internal/core/services"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements MetadataStore backed by SQLite. Version ordering
// follows the gem component rule, which SQL cannot express, so queries
// fetch rows in name order and sorting by version happens in Go.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the SQLite database and runs migrations.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dsn := dataDir + "/registry.db?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			name           TEXT NOT NULL,
			version        TEXT NOT NULL,
			platform       TEXT NOT NULL DEFAULT 'ruby',
			authors        TEXT NOT NULL DEFAULT '[]',
			summary        TEXT NOT NULL DEFAULT '',
			info           TEXT NOT NULL DEFAULT '',
			dependencies   TEXT NOT NULL DEFAULT '[]',
			content_hash   TEXT NOT NULL,
			created_at     DATETIME NOT NULL,
			download_count INTEGER NOT NULL DEFAULT 0,
			UNIQUE(name, version, platform)
		);
		CREATE INDEX IF NOT EXISTS idx_records_name ON records(name);
	`)
	return err
}

const recordColumns = "name, version, platform, authors, summary, info, dependencies, content_hash, created_at, download_count"

func (s *SQLiteStore) ListAll() ([]models.Record, error) {
	rows, err := s.db.Query("SELECT " + recordColumns + " FROM records ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("%w: listing records: %v", services.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		return gemver.Compare(records[i].Version, records[j].Version) > 0
	})
	return records, nil
}

func (s *SQLiteStore) ListVersions(name string) ([]models.Record, error) {
	rows, err := s.db.Query("SELECT "+recordColumns+" FROM records WHERE name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("%w: listing versions of %s: %v", services.ErrStoreUnavailable, name, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return gemver.Compare(records[i].Version, records[j].Version) > 0
	})
	return records, nil
}

func (s *SQLiteStore) GetLatest(name string) (*models.Record, error) {
	records, err := s.ListVersions(name)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: gem %s", services.ErrNotFound, name)
	}

	// Scan in descending order; on a version tie the later row wins so
	// the pick stays deterministic.
	latest := records[0]
	for _, rec := range records[1:] {
		if gemver.Compare(rec.Version, latest.Version) == 0 {
			latest = rec
		}
	}
	return &latest, nil
}

func (s *SQLiteStore) GetExact(name, version string) (*models.Record, error) {
	row := s.db.QueryRow(`
		SELECT `+recordColumns+` FROM records
		WHERE name = ? AND version = ?
		ORDER BY CASE WHEN platform = 'ruby' THEN 0 ELSE 1 END, platform
		LIMIT 1
	`, name, version)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: gem %s@%s", services.ErrNotFound, name, version)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: getting %s@%s: %v", services.ErrStoreUnavailable, name, version, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Upsert(rec models.Record) error {
	if rec.Platform == "" {
		rec.Platform = models.DefaultPlatform
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	authors, err := json.Marshal(rec.Authors)
	if err != nil {
		return fmt.Errorf("encoding authors: %w", err)
	}
	deps, err := json.Marshal(rec.Dependencies)
	if err != nil {
		return fmt.Errorf("encoding dependencies: %w", err)
	}

	// Overwrites keep the original created_at and download counter: the
	// record is replaced, its identity and history are not.
	_, err = s.db.Exec(`
		INSERT INTO records (name, version, platform, authors, summary, info, dependencies, content_hash, created_at, download_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(name, version, platform) DO UPDATE SET
			authors      = excluded.authors,
			summary      = excluded.summary,
			info         = excluded.info,
			dependencies = excluded.dependencies,
			content_hash = excluded.content_hash
	`, rec.Name, rec.Version, rec.Platform, string(authors), rec.Summary, rec.Info, string(deps), rec.ContentHash, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: upserting %s@%s: %v", services.ErrStoreUnavailable, rec.Name, rec.Version, err)
	}
	return nil
}

func (s *SQLiteStore) IncrementDownload(name, version string) error {
	_, err := s.db.Exec(
		"UPDATE records SET download_count = download_count + 1 WHERE name = ? AND version = ?",
		name, version,
	)
	if err != nil {
		return fmt.Errorf("%w: incrementing downloads for %s@%s: %v", services.ErrStoreUnavailable, name, version, err)
	}
	return nil
}

func (s *SQLiteStore) SearchNames(query string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT name FROM records WHERE name LIKE ? ORDER BY name",
		"%"+query+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: searching names: %v", services.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var rec models.Record
	var authors, deps string
	err := row.Scan(&rec.Name, &rec.Version, &rec.Platform, &authors, &rec.Summary,
		&rec.Info, &deps, &rec.ContentHash, &rec.CreatedAt, &rec.DownloadCount)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &rec.Authors); err != nil {
		return nil, fmt.Errorf("decoding authors: %w", err)
	}
	if err := json.Unmarshal([]byte(deps), &rec.Dependencies); err != nil {
		return nil, fmt.Errorf("decoding dependencies: %w", err)
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	var records []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading records: %v", services.ErrStoreUnavailable, err)
	}
	return records, nil
}
