package models

import "time"

// DefaultPlatform is the platform recorded for pure-language gems.
const DefaultPlatform = "ruby"

// Dependency is one runtime dependency of a gem release: the depended-on
// gem name and a free-form requirement string such as ">= 1.0". The
// requirement is carried verbatim, never parsed.
type Dependency struct {
	Name        string `json:"name"`
	Requirement string `json:"requirement"`
}

// Record is one concrete (name, version, platform) gem release and its
// metadata. The triple is unique in the store; re-uploading it overwrites
// the prior record.
type Record struct {
	Name          string       `json:"name"`
	Version       string       `json:"version"`
	Platform      string       `json:"platform"`
	Authors       []string     `json:"authors,omitempty"`
	Summary       string       `json:"summary,omitempty"`
	Info          string       `json:"info,omitempty"`
	Dependencies  []Dependency `json:"dependencies,omitempty"`
	ContentHash   string       `json:"content_hash"`
	CreatedAt     time.Time    `json:"created_at"`
	DownloadCount int64        `json:"download_count"`
}

// ArchiveKey returns the blob-store key of the record's gem archive.
func (r Record) ArchiveKey() string {
	return r.Name + "-" + r.Version + ".gem"
}

// GemSummary is the JSON list entry for a gem: its name plus the version
// of its current release.
type GemSummary struct {
	Name          string `json:"name"`
	LatestVersion string `json:"latest_version"`
}

// GemInfo is the JSON detail view of a gem and all its releases.
type GemInfo struct {
	Name     string   `json:"name"`
	Versions []Record `json:"versions"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type UploadResponse struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Platform   string `json:"platform"`
	Hash       string `json:"hash"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploaded_at"`
}

type GCResult struct {
	DeletedArchives int   `json:"deleted_archives"`
	FreedBytes      int64 `json:"freed_bytes"`
}
