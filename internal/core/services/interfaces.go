package services

import (
	"github.com/gemhutch/registry/internal/core/models"
)

// MetadataStore is the canonical store of gem release records.
type MetadataStore interface {
	// ListAll returns every record, sorted by name ascending and then
	// version descending under the gem version-ordering rule. It returns
	// either the complete record set or an error, never a partial list.
	ListAll() ([]models.Record, error)

	// ListVersions returns all records for one gem, version descending.
	// An unknown name yields an empty slice, not an error.
	ListVersions(name string) ([]models.Record, error)

	// GetLatest returns the record with the highest version for a name,
	// or ErrNotFound.
	GetLatest(name string) (*models.Record, error)

	// GetExact returns the record for (name, version), or ErrNotFound.
	// When several platforms share the version, the "ruby" platform wins.
	GetExact(name, version string) (*models.Record, error)

	// Upsert writes a record keyed by (name, version, platform),
	// overwriting any prior record for the triple. CreatedAt and the
	// download counter of an existing record are preserved.
	Upsert(rec models.Record) error

	// IncrementDownload bumps the download counter for (name, version).
	// The counter is observability, not correctness: callers log failures
	// and carry on.
	IncrementDownload(name, version string) error

	// SearchNames returns distinct gem names matching a substring query,
	// sorted ascending.
	SearchNames(query string) ([]string, error)

	// Close closes the metadata store.
	Close() error
}

// BlobStore is a keyed byte store holding gem archives and derived index
// artifacts. It owns the bytes; callers only compute and exchange them.
type BlobStore interface {
	// Put writes data under key, atomically replacing any prior value.
	Put(key string, data []byte) error

	// Get returns the bytes stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Exists reports whether key holds a value.
	Exists(key string) bool

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// List returns every stored key.
	List() ([]string, error)
}

// Authenticator validates request tokens.
type Authenticator interface {
	// ValidateToken checks if a token is valid.
	ValidateToken(token string) bool
}
