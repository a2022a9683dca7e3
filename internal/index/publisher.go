package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gemhutch/registry/internal/core/services"
)

// Publisher regenerates every derived index artifact from the metadata
// store and persists them to the blob store. It holds no state between
// calls: each publish re-reads the full record set so artifacts always
// reflect one consistent snapshot.
type Publisher struct {
	meta   services.MetadataStore
	blobs  services.BlobStore
	logger zerolog.Logger
}

// NewPublisher creates a Publisher over the given stores.
func NewPublisher(meta services.MetadataStore, blobs services.BlobStore, logger zerolog.Logger) *Publisher {
	return &Publisher{meta: meta, blobs: blobs, logger: logger}
}

// PublishAll takes one snapshot of the record set and rewrites all index
// artifacts: the legacy specs trio, the names and versions lists, and one
// info artifact per known gem. The legacy and compact sets are generated
// concurrently from the same snapshot. Write failures do not roll back
// keys already written; they are collected into a PublishError so the
// caller can log and retry. Safe to call repeatedly and concurrently;
// the last writer wins per key.
func (p *Publisher) PublishAll(ctx context.Context) error {
	records, err := p.meta.ListAll()
	if err != nil {
		return fmt.Errorf("loading record snapshot: %w", err)
	}

	var mu sync.Mutex
	var failed []string
	var causes []error
	write := func(key string, data []byte) {
		if err := p.blobs.Put(key, data); err != nil {
			p.logger.Error().Err(err).Str("key", key).Msg("writing index artifact")
			mu.Lock()
			failed = append(failed, key)
			causes = append(causes, err)
			mu.Unlock()
		}
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		write(KeySpecs, BuildSpecs(records))
		write(KeyLatestSpecs, BuildLatestSpecs(records))
		write(KeyPrereleaseSpecs, BuildPrereleaseSpecs())
		return nil
	})
	g.Go(func() error {
		write(KeyNames, BuildNames(records))
		write(KeyVersions, BuildVersions(records))
		seen := make(map[string]bool)
		for _, rec := range records {
			if seen[rec.Name] {
				continue
			}
			seen[rec.Name] = true
			write(InfoKey(rec.Name), BuildInfo(records, rec.Name))
		}
		return nil
	})
	g.Wait()

	if len(failed) > 0 {
		return &services.PublishError{Keys: failed, Errs: causes}
	}
	return nil
}

// GetOrGenerate returns the stored artifact for key. If the key has never
// been published it synthesizes the empty-collection artifact for that
// key, persists it, and returns it, so well-known index keys never 404.
func (p *Publisher) GetOrGenerate(key string) ([]byte, error) {
	data, err := p.blobs.Get(key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}

	data, ok := emptyArtifact(key)
	if !ok {
		return nil, err
	}
	if putErr := p.blobs.Put(key, data); putErr != nil {
		// Serve the synthesized artifact anyway; only persistence failed.
		p.logger.Error().Err(putErr).Str("key", key).Msg("persisting generated artifact")
	}
	return data, nil
}

// emptyArtifact returns the empty-collection artifact for a well-known
// index key, or ok=false for keys this publisher does not own.
func emptyArtifact(key string) ([]byte, bool) {
	switch {
	case key == KeySpecs || key == KeyLatestSpecs || key == KeyPrereleaseSpecs:
		return emptySpecs(), true
	case key == KeyNames || key == KeyVersions:
		return []byte{}, true
	case strings.HasPrefix(key, InfoKeyPrefix):
		return []byte{}, true
	}
	return nil, false
}
