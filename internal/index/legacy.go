// Package index derives the registry's index artifacts from the metadata
// record set: the legacy binary specs listings, the compact text formats,
// and the binary dependency-resolution response.
package index

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"github.com/gemhutch/registry/internal/core/models"
	"github.com/gemhutch/registry/internal/core/services"
	"github.com/gemhutch/registry/internal/index/rmarshal"
)

// Fixed blob-store keys for the legacy artifacts.
const (
	KeySpecs           = "specs"
	KeyLatestSpecs     = "latest_specs"
	KeyPrereleaseSpecs = "prerelease_specs"
)

// BuildSpecs encodes every (name, version, platform) triple into the
// legacy binary listing: a serialized array of 3-element string arrays,
// gzip-compressed. If serialization fails the result degrades to the
// valid empty listing, never to corrupt bytes.
func BuildSpecs(records []models.Record) []byte {
	rows := make([]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{rec.Name, rec.Version, rec.Platform})
	}
	payload, err := rmarshal.Marshal(rows)
	if err != nil {
		return emptySpecs()
	}
	return gzipBytes(payload)
}

// BuildLatestSpecs produces the latest_specs artifact. It carries the
// same content as the full listing: no latest-only filtering is applied,
// matching the observed behavior this registry preserves.
func BuildLatestSpecs(records []models.Record) []byte {
	return BuildSpecs(records)
}

// BuildPrereleaseSpecs produces the prerelease_specs artifact, which is
// always the empty listing: every version string here is treated as a
// release version.
func BuildPrereleaseSpecs() []byte {
	return emptySpecs()
}

// DecodeSpecs decompresses and decodes a legacy listing back into its
// triples. Failures wrap services.ErrEncoding.
func DecodeSpecs(data []byte) ([][3]string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing specs: %v", services.ErrEncoding, err)
	}
	defer zr.Close()

	var payload bytes.Buffer
	if _, err := payload.ReadFrom(zr); err != nil {
		return nil, fmt.Errorf("%w: decompressing specs: %v", services.ErrEncoding, err)
	}

	v, err := rmarshal.Unmarshal(payload.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: decoding specs: %v", services.ErrEncoding, err)
	}
	rows, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: decoding specs: top-level value is %T, want array", services.ErrEncoding, v)
	}

	triples := make([][3]string, 0, len(rows))
	for i, row := range rows {
		entry, ok := row.([]any)
		if !ok || len(entry) != 3 {
			return nil, fmt.Errorf("%w: decoding specs: row %d is not a 3-element array", services.ErrEncoding, i)
		}
		var triple [3]string
		for j, el := range entry {
			s, ok := el.(string)
			if !ok {
				return nil, fmt.Errorf("%w: decoding specs: row %d element %d is %T, want string", services.ErrEncoding, i, j, el)
			}
			triple[j] = s
		}
		triples = append(triples, triple)
	}
	return triples, nil
}

func emptySpecs() []byte {
	payload, _ := rmarshal.Marshal([]any{})
	return gzipBytes(payload)
}

func gzipBytes(payload []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(payload)
	zw.Close()
	return buf.Bytes()
}
