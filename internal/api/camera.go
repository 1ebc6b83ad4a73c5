package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veganlens/veganlens-core/internal/camera"
)

// journalQueryLimit caps the ?limit= parameter on journal endpoints.
const journalQueryLimit = 200

// handleCameraState returns the current camera state snapshot.
//
// GET /api/v1/camera/state
func (s *Server) handleCameraState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.camera.State())
}

// ownerResponse wraps the current lease. Lease is null when nobody holds
// the camera.
type ownerResponse struct {
	Lease *camera.Lease `json:"lease"`
}

// handleCameraOwner returns the current ownership lease.
//
// GET /api/v1/camera/owner
func (s *Server) handleCameraOwner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ownerResponse{Lease: s.camera.CurrentOwner()})
}

// modeRequest asks for a mode transition on behalf of an owner identity.
type modeRequest struct {
	Mode      string              `json:"mode"`
	Owner     string              `json:"owner"`
	Overrides *camera.ConfigPatch `json:"overrides,omitempty"`
}

// modeResponse reports the transition outcome. A refusal is a normal
// response with granted=false, not an HTTP error; the caller keeps running
// either way.
type modeResponse struct {
	Granted bool         `json:"granted"`
	State   camera.State `json:"state"`
}

// handleCameraMode requests a mode transition.
//
// POST /api/v1/camera/mode
func (s *Server) handleCameraMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Owner == "" {
		writeBadRequest(w, "owner is required")
		return
	}

	granted := s.camera.SwitchToMode(r.Context(), camera.Mode(req.Mode), req.Overrides, req.Owner)
	writeJSON(w, http.StatusOK, modeResponse{Granted: granted, State: s.camera.State()})
}

// handleCameraConfig returns the stored default config for a mode.
//
// GET /api/v1/camera/config/{mode}
func (s *Server) handleCameraConfig(w http.ResponseWriter, r *http.Request) {
	mode := camera.Mode(chi.URLParam(r, "mode"))
	if !mode.Valid() || mode == camera.ModeInactive {
		writeNotFound(w, "unknown camera mode")
		return
	}
	writeJSON(w, http.StatusOK, s.camera.ModeConfig(mode))
}

// handleCameraConfigPatch merges a partial config into a mode's defaults.
// If the mode is currently active, the merged config is pushed to the
// surface immediately.
//
// PATCH /api/v1/camera/config/{mode}
func (s *Server) handleCameraConfigPatch(w http.ResponseWriter, r *http.Request) {
	mode := camera.Mode(chi.URLParam(r, "mode"))
	if !mode.Valid() || mode == camera.ModeInactive {
		writeNotFound(w, "unknown camera mode")
		return
	}

	var patch camera.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	s.camera.UpdateModeConfig(r.Context(), mode, &patch)
	writeJSON(w, http.StatusOK, s.camera.ModeConfig(mode))
}

// readyResponse reports operation readiness.
type readyResponse struct {
	Operation camera.Operation `json:"operation"`
	Ready     bool             `json:"ready"`
}

// handleCameraReady reports whether the camera can perform an operation
// right now.
//
// GET /api/v1/camera/ready?operation={barcode|photo}
func (s *Server) handleCameraReady(w http.ResponseWriter, r *http.Request) {
	op := camera.Operation(r.URL.Query().Get("operation"))
	switch op {
	case camera.OperationBarcode, camera.OperationPhoto:
	default:
		writeBadRequest(w, "operation must be barcode or photo")
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Operation: op, Ready: s.camera.IsReadyFor(op)})
}

// permissionResponse reports the permission prompt outcome.
type permissionResponse struct {
	Granted bool `json:"granted"`
}

// handleCameraPermission runs the camera permission prompt.
//
// POST /api/v1/camera/permission
func (s *Server) handleCameraPermission(w http.ResponseWriter, r *http.Request) {
	granted, err := s.camera.RequestPermission(r.Context())
	if err != nil {
		s.logger.Warn("permission request failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeInternal, "permission prompt failed")
		return
	}
	writeJSON(w, http.StatusOK, permissionResponse{Granted: granted})
}

// captureRequest tunes a single photo capture.
type captureRequest struct {
	Quality float64 `json:"quality,omitempty"`
}

// captureResponse carries the stored photo location.
type captureResponse struct {
	URI        string    `json:"uri"`
	CapturedAt time.Time `json:"captured_at"`
}

// handleCameraCapture takes a photo in the current photo mode.
//
// POST /api/v1/camera/capture
func (s *Server) handleCameraCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
	}

	uri, err := s.camera.CapturePhoto(r.Context(), camera.CaptureOptions{Quality: req.Quality})
	if err != nil {
		switch {
		case errors.Is(err, camera.ErrNotReady):
			writeConflict(w, "camera is not ready for photo capture")
		case errors.Is(err, camera.ErrCaptureBlocked):
			writeConflict(w, "capture is blocked during focus recovery")
		case errors.Is(err, camera.ErrClosed):
			writeConflict(w, "camera coordinator is shut down")
		default:
			s.logger.Warn("photo capture failed", "error", err)
			writeError(w, http.StatusBadGateway, ErrCodeInternal, "photo capture failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, captureResponse{URI: uri, CapturedAt: time.Now()})
}

// handleCameraMetrics returns transition performance metrics.
//
// GET /api/v1/camera/metrics
func (s *Server) handleCameraMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.camera.PerformanceMetrics())
}

// handleCameraHistory returns the recent transition samples.
//
// GET /api/v1/camera/history
func (s *Server) handleCameraHistory(w http.ResponseWriter, r *http.Request) {
	history := s.camera.TransitionHistory()
	if history == nil {
		history = []camera.TransitionSample{}
	}
	writeJSON(w, http.StatusOK, history)
}

// handleCameraRecovery returns the focus recovery status.
//
// GET /api/v1/camera/recovery
func (s *Server) handleCameraRecovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.camera.RecoveryStatus())
}

// handleCameraDiagnostics writes a full health snapshot to the log.
//
// POST /api/v1/camera/diagnostics
func (s *Server) handleCameraDiagnostics(w http.ResponseWriter, r *http.Request) {
	s.camera.LogHealthDiagnostics()
	w.WriteHeader(http.StatusNoContent)
}

// handleJournalTransitions returns persisted transitions, newest first.
//
// GET /api/v1/camera/journal/transitions?limit={n}
func (s *Server) handleJournalTransitions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "transition journal is not enabled")
		return
	}

	rows, err := s.journal.RecentTransitions(r.Context(), queryLimit(r))
	if err != nil {
		s.logger.Error("reading transition journal", "error", err)
		writeInternalError(w, "failed to read journal")
		return
	}
	if rows == nil {
		rows = []camera.JournalTransition{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleJournalResets returns persisted recovery resets, newest first.
//
// GET /api/v1/camera/journal/resets?limit={n}
func (s *Server) handleJournalResets(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "transition journal is not enabled")
		return
	}

	rows, err := s.journal.RecentResets(r.Context(), queryLimit(r))
	if err != nil {
		s.logger.Error("reading reset journal", "error", err)
		writeInternalError(w, "failed to read journal")
		return
	}
	if rows == nil {
		rows = []camera.JournalReset{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// queryLimit parses the ?limit= parameter, clamped to a sane ceiling.
// Zero lets the journal apply its own default.
func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	if n > journalQueryLimit {
		return journalQueryLimit
	}
	return n
}

// componentHealth is one entry in the health report.
type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// healthResponse is the full health report.
type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// handleHealth reports the health of the core and its infrastructure.
// Optional components that were never configured are reported as disabled,
// not unhealthy.
//
// GET /api/v1/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	components := make(map[string]componentHealth)
	healthy := true

	components["camera"] = componentHealth{Status: "ok"}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			components["database"] = componentHealth{Status: "unhealthy", Error: err.Error()}
			healthy = false
		} else {
			components["database"] = componentHealth{Status: "ok"}
		}
	} else {
		components["database"] = componentHealth{Status: "disabled"}
	}

	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(ctx); err != nil {
			components["mqtt"] = componentHealth{Status: "unhealthy", Error: err.Error()}
			healthy = false
		} else {
			components["mqtt"] = componentHealth{Status: "ok"}
		}
	} else {
		components["mqtt"] = componentHealth{Status: "disabled"}
	}

	if s.influx != nil {
		if err := s.influx.HealthCheck(ctx); err != nil {
			components["influxdb"] = componentHealth{Status: "unhealthy", Error: err.Error()}
			healthy = false
		} else {
			components["influxdb"] = componentHealth{Status: "ok"}
		}
	} else {
		components["influxdb"] = componentHealth{Status: "disabled"}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, healthResponse{
		Status:     status,
		Version:    s.version,
		Components: components,
		Timestamp:  time.Now(),
	})
}
