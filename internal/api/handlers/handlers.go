package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gemhutch/registry/internal/core/models"
	"github.com/gemhutch/registry/internal/core/services"
	"github.com/gemhutch/registry/internal/index"
	"github.com/gemhutch/registry/internal/util/hashing"
	"github.com/gemhutch/registry/internal/util/logging"
)

// uploadLimit caps the total size of a multipart gem upload request.
const uploadLimit = 64 << 20

// Handler holds all HTTP handlers and their dependencies.
type Handler struct {
	blobs       services.BlobStore
	meta        services.MetadataStore
	auth        services.Authenticator
	publisher   *index.Publisher
	logger      zerolog.Logger
	cacheMaxAge int
}

// New creates a new Handler with the given dependencies. cacheMaxAge is
// the max-age, in seconds, advertised on the text index endpoints; zero
// or negative falls back to one minute.
func New(blobs services.BlobStore, meta services.MetadataStore, auth services.Authenticator, publisher *index.Publisher, logger zerolog.Logger, cacheMaxAge int) *Handler {
	if cacheMaxAge <= 0 {
		cacheMaxAge = 60
	}
	return &Handler{
		blobs:       blobs,
		meta:        meta,
		auth:        auth,
		publisher:   publisher,
		logger:      logger,
		cacheMaxAge: cacheMaxAge,
	}
}

// Router returns the chi router with all routes. Index and download
// endpoints are what gem clients fetch, so they stay unauthenticated;
// mutating routes require a bearer token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestIDMiddleware)
	r.Use(h.loggingMiddleware)

	// Legacy binary index artifacts.
	r.Get("/specs.4.8.gz", h.legacyArtifact(index.KeySpecs))
	r.Get("/latest_specs.4.8.gz", h.legacyArtifact(index.KeyLatestSpecs))
	r.Get("/prerelease_specs.4.8.gz", h.legacyArtifact(index.KeyPrereleaseSpecs))

	// Compact text index.
	r.Get("/names", h.compactArtifact(index.KeyNames))
	r.Get("/versions", h.compactArtifact(index.KeyVersions))
	r.Get("/info/{name}", h.GemInfoLines)

	r.Get("/api/v1/dependencies", h.Dependencies)
	r.Get("/gems/{filename}", h.DownloadGem)

	r.Get("/api/v1/gems", h.ListGems)
	r.Get("/api/v1/gems/{name}", h.GetGem)
	r.Get("/api/v1/gems/{name}/{version}", h.GetGemVersion)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Post("/api/v1/gems", h.UploadGem)
		r.Post("/api/v1/gc", h.GarbageCollect)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// requestIDMiddleware adds a unique request ID to each request.
func (h *Handler) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := logging.WithRequestID(r.Context(), id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logging.LogRequest(h.logger, r.Context(), r.Method, r.URL.Path, rw.status, rw.written, time.Since(start))
	})
}

// authMiddleware validates the bearer token.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if !h.auth.ValidateToken(token) {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// legacyArtifact serves one of the gzip binary index artifacts.
func (h *Handler) legacyArtifact(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := h.publisher.GetOrGenerate(key)
		if err != nil {
			h.logger.Error().Err(err).Str("key", key).Msg("serving legacy index")
			writeError(w, http.StatusInternalServerError, "index unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	}
}

// compactArtifact serves one of the compact text artifacts. The ETag is a
// weak validator that changes on every response: these files must be
// fresh, so clients get only the short max-age, never a revalidation hit.
func (h *Handler) compactArtifact(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := h.publisher.GetOrGenerate(key)
		if err != nil {
			h.logger.Error().Err(err).Str("key", key).Msg("serving compact index")
			writeError(w, http.StatusInternalServerError, "index unavailable")
			return
		}
		h.writeCompact(w, data)
	}
}

// GemInfoLines handles GET /info/{name}
func (h *Handler) GemInfoLines(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.publisher.GetOrGenerate(index.InfoKey(name))
	if err != nil {
		h.logger.Error().Err(err).Str("gem", name).Msg("serving gem info lines")
		writeError(w, http.StatusInternalServerError, "index unavailable")
		return
	}
	h.writeCompact(w, data)
}

// Dependencies handles GET /api/v1/dependencies?gems=a,b
func (h *Handler) Dependencies(w http.ResponseWriter, r *http.Request) {
	var names []string
	for _, name := range strings.Split(r.URL.Query().Get("gems"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	records, err := h.meta.ListAll()
	if err != nil {
		h.logger.Error().Err(err).Msg("listing records for dependency response")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(index.BuildDependencyResponse(records, names))
}

// UploadGem handles POST /api/v1/gems. The request is multipart: a
// "metadata" part holding the validated record JSON (name, version,
// platform, authors, summary, info, dependencies) and a "gem" part
// holding the archive bytes. Archive inspection happens upstream; this
// endpoint's contract starts at a validated metadata record.
func (h *Handler) UploadGem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, uploadLimit)
	if err := r.ParseMultipartForm(uploadLimit); err != nil {
		writeError(w, http.StatusBadRequest, "malformed or oversized multipart request")
		return
	}

	var rec models.Record
	metaPart := r.FormValue("metadata")
	if metaPart == "" {
		writeError(w, http.StatusBadRequest, "missing metadata part")
		return
	}
	if err := json.Unmarshal([]byte(metaPart), &rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid metadata JSON")
		return
	}
	if rec.Name == "" || rec.Version == "" {
		writeError(w, http.StatusBadRequest, "name and version are required")
		return
	}
	if rec.Platform == "" {
		rec.Platform = models.DefaultPlatform
	}

	file, _, err := r.FormFile("gem")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing gem archive part")
		return
	}
	defer file.Close()
	archive, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading gem archive")
		return
	}

	rec.ContentHash = hashing.SumSHA256(archive)
	rec.CreatedAt = time.Now().UTC()

	if err := h.blobs.Put(rec.ArchiveKey(), archive); err != nil {
		h.logger.Error().Err(err).Str("key", rec.ArchiveKey()).Msg("storing gem archive")
		writeError(w, http.StatusInternalServerError, "failed to store archive")
		return
	}
	if err := h.meta.Upsert(rec); err != nil {
		h.logger.Error().Err(err).Str("gem", rec.Name).Str("version", rec.Version).Msg("upserting record")
		writeError(w, http.StatusInternalServerError, "failed to store metadata")
		return
	}

	// The upload is durable once the record is stored. Index publication
	// is best-effort and self-heals on the next publish.
	if err := h.publisher.PublishAll(r.Context()); err != nil {
		h.logger.Warn().Err(err).
			Str("request_id", logging.RequestID(r.Context())).
			Str("gem", rec.Name).
			Str("version", rec.Version).
			Msg("index publish failed after upload")
	}

	h.logger.Info().
		Str("request_id", logging.RequestID(r.Context())).
		Str("gem", rec.Name).
		Str("version", rec.Version).
		Str("platform", rec.Platform).
		Str("hash", rec.ContentHash).
		Int("size", len(archive)).
		Dur("upload_latency", time.Since(start)).
		Msg("gem upload completed")

	writeJSON(w, http.StatusCreated, models.UploadResponse{
		Name:       rec.Name,
		Version:    rec.Version,
		Platform:   rec.Platform,
		Hash:       rec.ContentHash,
		Size:       int64(len(archive)),
		UploadedAt: rec.CreatedAt.Format(time.RFC3339),
	})
}

// DownloadGem handles GET /gems/{filename}
func (h *Handler) DownloadGem(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !strings.HasSuffix(filename, ".gem") {
		writeError(w, http.StatusNotFound, "not a gem archive")
		return
	}

	data, err := h.blobs.Get(filename)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("gem %s not found", filename))
			return
		}
		h.logger.Error().Err(err).Str("key", filename).Msg("reading gem archive")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// The counter is observability only; a failed bump never fails the
	// download.
	if name, version, ok := h.resolveArchive(filename); ok {
		if err := h.meta.IncrementDownload(name, version); err != nil {
			h.logger.Warn().Err(err).Str("gem", name).Str("version", version).Msg("incrementing download count")
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

// resolveArchive maps an archive filename back to its record's name and
// version. Gem names may contain dashes, so candidate splits are tried
// from the rightmost dash inward.
func (h *Handler) resolveArchive(filename string) (name, version string, ok bool) {
	base := strings.TrimSuffix(filename, ".gem")
	for i := strings.LastIndex(base, "-"); i > 0; i = strings.LastIndex(base[:i], "-") {
		rec, err := h.meta.GetExact(base[:i], base[i+1:])
		if err == nil {
			return rec.Name, rec.Version, true
		}
		if !errors.Is(err, services.ErrNotFound) {
			return "", "", false
		}
	}
	return "", "", false
}

// ListGems handles GET /api/v1/gems
func (h *Handler) ListGems(w http.ResponseWriter, r *http.Request) {
	names, err := h.meta.SearchNames(r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error().Err(err).Msg("searching gems")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	summaries := []models.GemSummary{}
	for _, name := range names {
		latest, err := h.meta.GetLatest(name)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			h.logger.Error().Err(err).Str("gem", name).Msg("getting latest version")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		summaries = append(summaries, models.GemSummary{Name: name, LatestVersion: latest.Version})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetGem handles GET /api/v1/gems/{name}
func (h *Handler) GetGem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	versions, err := h.meta.ListVersions(name)
	if err != nil {
		h.logger.Error().Err(err).Str("gem", name).Msg("listing versions")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("gem %s not found", name))
		return
	}

	writeJSON(w, http.StatusOK, models.GemInfo{Name: name, Versions: versions})
}

// GetGemVersion handles GET /api/v1/gems/{name}/{version}
func (h *Handler) GetGemVersion(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version := chi.URLParam(r, "version")

	rec, err := h.meta.GetExact(name, version)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("gem %s@%s not found", name, version))
			return
		}
		h.logger.Error().Err(err).Str("gem", name).Str("version", version).Msg("getting record")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GarbageCollect handles POST /api/v1/gc. It removes archive blobs no
// record references; index artifacts are never collected.
func (h *Handler) GarbageCollect(w http.ResponseWriter, r *http.Request) {
	records, err := h.meta.ListAll()
	if err != nil {
		h.logger.Error().Err(err).Msg("listing records for gc")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	referenced := make(map[string]bool, len(records))
	for _, rec := range records {
		referenced[rec.ArchiveKey()] = true
	}

	keys, err := h.blobs.List()
	if err != nil {
		h.logger.Error().Err(err).Msg("listing blobs")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var deleted int
	var freed int64
	for _, key := range keys {
		if !strings.HasSuffix(key, ".gem") || referenced[key] {
			continue
		}
		if data, err := h.blobs.Get(key); err == nil {
			freed += int64(len(data))
		}
		if err := h.blobs.Delete(key); err != nil {
			h.logger.Error().Err(err).Str("key", key).Msg("deleting unreferenced archive")
			continue
		}
		deleted++
		h.logger.Info().Str("key", key).Msg("garbage collected archive")
	}

	writeJSON(w, http.StatusOK, models.GCResult{
		DeletedArchives: deleted,
		FreedBytes:      freed,
	})
}

// Helper functions

// writeCompact writes a compact-index text body with the short cache
// lifetime and per-response weak validator these endpoints promise.
func (h *Handler) writeCompact(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.cacheMaxAge))
	w.Header().Set("ETag", fmt.Sprintf("W/%q", uuid.NewString()))
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: msg,
	})
}

// responseWriter wraps http.ResponseWriter to capture status and bytes written.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}
