package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/gwlsn/mediaconv/internal/browse"
	"github.com/gwlsn/mediaconv/internal/config"
	"github.com/gwlsn/mediaconv/internal/events"
	"github.com/gwlsn/mediaconv/internal/formats"
	"github.com/gwlsn/mediaconv/internal/imageconv"
	"github.com/gwlsn/mediaconv/internal/jobs"
	"github.com/gwlsn/mediaconv/internal/logger"
	"github.com/gwlsn/mediaconv/internal/store"
)

// Converter is the part of jobs.Controller the API drives.
type Converter interface {
	Convert(ctx context.Context, req jobs.Request) jobs.Result
	Cancel(id string) error
	Running() []string
	Timeout() time.Duration
	SetTimeout(d time.Duration)
}

// History is the read side of the job store.
type History interface {
	ListJobs(limit int) ([]*jobs.Job, error)
	Stats() (store.Stats, error)
}

const defaultJobLimit = 50

// Handler provides HTTP API handlers
type Handler struct {
	conv    Converter
	hub     *events.Hub
	history History // may be nil
	cfg     *config.Config
	cfgPath string
	cfgMu   sync.Mutex // Protects cfg updates
	browser *browse.Browser
}

// NewHandler creates a new API handler. history may be nil when no job
// store is configured.
func NewHandler(conv Converter, hub *events.Hub, history History, cfg *config.Config, cfgPath string) *Handler {
	return &Handler{
		conv:    conv,
		hub:     hub,
		history: history,
		cfg:     cfg,
		cfgPath: cfgPath,
	}
}

// SetBrowser enables the file picker endpoint.
func (h *Handler) SetBrowser(b *browse.Browser) {
	h.browser = b
}

// response helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Convert handles POST /api/convert/{kind}. Failures of the conversion
// itself are reported in the Result body with status 200.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	kind, ok := formats.ParseKind(mux.Vars(r)["kind"])
	if !ok || kind == formats.KindOther {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown media kind: %s", mux.Vars(r)["kind"]))
		return
	}

	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if kind == formats.KindImage {
		writeJSON(w, http.StatusOK, imageconv.Convert(req.InputPath, req.OutputPath, req.Format))
		return
	}

	req.Kind = kind
	// The job outlives a disconnected client; DELETE /api/jobs/{id} stops it.
	result := h.conv.Convert(context.WithoutCancel(r.Context()), req)
	if result.Success && h.browser != nil {
		h.browser.InvalidateCache(req.OutputPath)
	}
	writeJSON(w, http.StatusOK, result)
}

// Browse handles GET /api/browse?path=...&kind=...
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	if h.browser == nil {
		writeError(w, http.StatusNotFound, "file browsing is disabled")
		return
	}
	kind, _ := formats.ParseKind(r.URL.Query().Get("kind"))

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := h.browser.Browse(ctx, r.URL.Query().Get("path"), kind)
	if err != nil {
		if errors.Is(err, browse.ErrOutsideRoot) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// OutputPathRequest is the request body for POST /api/output-path
type OutputPathRequest struct {
	InputPath string `json:"inputPath"`
	Format    string `json:"format"`
}

// OutputPath handles POST /api/output-path. The path is null when it
// cannot be derived.
func (h *Handler) OutputPath(w http.ResponseWriter, r *http.Request) {
	var req OutputPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var path *string
	if p, err := formats.OutputPath(req.InputPath, req.Format); err == nil {
		path = &p
	}
	writeJSON(w, http.StatusOK, map[string]*string{"path": path})
}

// Formats handles GET /api/formats
func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"audio":       formats.AudioFormats,
		"video":       formats.VideoFormats,
		"image":       formats.ImageFormats,
		"videoCodecs": formats.VideoCodecs,
		"audioCodecs": formats.AudioCodecs,
		"frameRates":  formats.FrameRates,
	})
}

// Filters handles GET /api/filters?kind=...
func (h *Handler) Filters(w http.ResponseWriter, r *http.Request) {
	kind, _ := formats.ParseKind(r.URL.Query().Get("kind"))
	writeJSON(w, http.StatusOK, formats.OpenFilters(kind))
}

// SaveFilters handles GET /api/save-filters?format=...
func (h *Handler) SaveFilters(w http.ResponseWriter, r *http.Request) {
	name, filters := formats.SaveFilters(r.URL.Query().Get("format"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"defaultPath": name,
		"filters":     filters,
	})
}

// ListJobs handles GET /api/jobs?limit=...
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	resp := map[string]interface{}{
		"running": h.conv.Running(),
		"jobs":    []*jobs.Job{},
	}
	if h.history != nil {
		list, err := h.history.ListJobs(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if list != nil {
			resp["jobs"] = list
		}
		stats, err := h.history.Stats()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["stats"] = stats
	}

	writeJSON(w, http.StatusOK, resp)
}

// CancelJob handles DELETE /api/jobs/{id}
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "job ID required")
		return
	}

	if err := h.conv.Cancel(id); err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// GetConfig handles GET /api/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.cfgMu.Lock()
	defer h.cfgMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"log_level":            logger.CurrentLevel(),
		"job_timeout_secs":     int(h.conv.Timeout() / time.Second),
		"progress_interval_ms": h.cfg.ProgressIntervalMs,
		"locale":               h.cfg.Locale,
	})
}

// UpdateConfigRequest is the request body for updating config
type UpdateConfigRequest struct {
	LogLevel       *string `json:"log_level,omitempty"`
	JobTimeoutSecs *int    `json:"job_timeout_secs,omitempty"`
}

// UpdateConfig handles PUT /api/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.cfgMu.Lock()
	defer h.cfgMu.Unlock()

	if req.JobTimeoutSecs != nil && *req.JobTimeoutSecs < 0 {
		writeError(w, http.StatusBadRequest, "job_timeout_secs must not be negative")
		return
	}
	if req.LogLevel != nil {
		switch *req.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			writeError(w, http.StatusBadRequest, "log_level must be one of debug, info, warn, error")
			return
		}
	}

	if req.JobTimeoutSecs != nil {
		h.cfg.JobTimeoutSecs = *req.JobTimeoutSecs
		h.conv.SetTimeout(h.cfg.JobTimeout())
	}
	if req.LogLevel != nil {
		h.cfg.LogLevel = *req.LogLevel
		logger.SetLevel(*req.LogLevel)
	}

	// Persist config to disk
	if h.cfgPath != "" {
		if err := h.cfg.Save(h.cfgPath); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save config: %v", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
