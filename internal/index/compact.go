package index

import (
	"sort"
	"strings"

	"github.com/gemhutch/registry/internal/core/gemver"
	"github.com/gemhutch/registry/internal/core/models"
)

// Blob-store keys for the compact text artifacts. Per-gem info artifacts
// live under the info/ prefix.
const (
	KeyNames      = "names"
	KeyVersions   = "versions"
	InfoKeyPrefix = "info/"
)

// InfoKey returns the blob-store key of a gem's info artifact.
func InfoKey(name string) string {
	return InfoKeyPrefix + name
}

// BuildNames renders the names list: every distinct gem name, sorted,
// one per line.
func BuildNames(records []models.Record) []byte {
	names := distinctNames(records)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// BuildVersions renders the versions list: one line per gem, with its
// distinct versions comma-joined in ascending order. A version released
// on several platforms appears once.
func BuildVersions(records []models.Record) []byte {
	byName := make(map[string][]string)
	for _, rec := range records {
		byName[rec.Name] = append(byName[rec.Name], rec.Version)
	}

	var b strings.Builder
	for _, name := range distinctNames(records) {
		versions := byName[name]
		gemver.SortAscending(versions)
		versions = dedupSorted(versions)
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(strings.Join(versions, ","))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// BuildInfo renders the per-gem info artifact: one line per release of
// name in ascending version order, each carrying the content hash, the
// platform, and the dependency list. An unknown name yields an empty
// body.
func BuildInfo(records []models.Record, name string) []byte {
	var releases []models.Record
	for _, rec := range records {
		if rec.Name == name {
			releases = append(releases, rec)
		}
	}
	sort.SliceStable(releases, func(i, j int) bool {
		return gemver.Compare(releases[i].Version, releases[j].Version) < 0
	})

	var b strings.Builder
	for _, rec := range releases {
		b.WriteString(rec.Version)
		b.WriteByte(',')
		b.WriteString(rec.ContentHash)
		b.WriteByte(',')
		b.WriteString(rec.Platform)
		for _, dep := range rec.Dependencies {
			b.WriteByte(',')
			b.WriteString(dep.Name)
			b.WriteByte(':')
			b.WriteString(dep.Requirement)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// dedupSorted collapses equal neighbors in a sorted slice, in place.
func dedupSorted(sorted []string) []string {
	out := sorted[:0]
	for _, s := range sorted {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}

func distinctNames(records []models.Record) []string {
	seen := make(map[string]bool, len(records))
	var names []string
	for _, rec := range records {
		if !seen[rec.Name] {
			seen[rec.Name] = true
			names = append(names, rec.Name)
		}
	}
	sort.Strings(names)
	return names
}
