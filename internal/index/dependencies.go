package index

import (
	"github.com/gemhutch/registry/internal/core/models"
	"github.com/gemhutch/registry/internal/index/rmarshal"
)

// BuildDependencyResponse encodes the per-gem dependency manifest for the
// requested names: a serialized array with one symbol-keyed hash per
// matching release, carrying its name, version, platform, and dependency
// pairs. Names with no records contribute nothing; an empty request or a
// serialization failure yields the encoding of the empty array.
func BuildDependencyResponse(records []models.Record, names []string) []byte {
	requested := make(map[string]bool, len(names))
	for _, name := range names {
		requested[name] = true
	}

	entries := []any{}
	for _, rec := range records {
		if !requested[rec.Name] {
			continue
		}
		deps := make([]any, 0, len(rec.Dependencies))
		for _, dep := range rec.Dependencies {
			deps = append(deps, []any{dep.Name, dep.Requirement})
		}
		entries = append(entries, rmarshal.Hash{
			{Key: rmarshal.Symbol("name"), Value: rec.Name},
			{Key: rmarshal.Symbol("version"), Value: rec.Version},
			{Key: rmarshal.Symbol("platform"), Value: rec.Platform},
			{Key: rmarshal.Symbol("dependencies"), Value: deps},
		})
	}

	data, err := rmarshal.Marshal(entries)
	if err != nil {
		data, _ = rmarshal.Marshal([]any{})
	}
	return data
}
