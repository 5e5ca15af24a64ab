package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/san-kum/isruplay/internal/playback"
	"github.com/san-kum/isruplay/internal/simclient"
	"github.com/san-kum/isruplay/internal/storage"
)

// Form defaults when a field is absent.
const (
	DefaultSpeed    = 1.0
	DefaultDuration = 0.1
)

// Handler serves stored runs in place of the simulation service.
type Handler struct {
	store  *storage.Store
	runID  string
	logger *slog.Logger
}

// NewRouter builds the fixture simulation API. A non-empty runID pins every
// simulation request to that run; otherwise runs are matched by parameters.
func NewRouter(st *storage.Store, runID string, logger *slog.Logger) *chi.Mux {
	h := &Handler{store: st, runID: runID, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	r.Get("/health", h.Health)
	r.Post(simclient.Path, h.RunSimulation)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.ListRuns)
		r.Get("/{id}", h.GetRun)
	})

	return r
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "runs": len(runs)})
}

// RunSimulation handles POST /run_simulation
func (h *Handler) RunSimulation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	speed, err := formFloat(r, simclient.FieldSpeed, DefaultSpeed)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	duration, err := formFloat(r, simclient.FieldDuration, DefaultDuration)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := playback.Params{Speed: speed, Duration: duration}
	b, err := h.store.Fetcher(h.runID).Fetch(r.Context(), p)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("load run failed", "speed", speed, "duration", duration, "error", err)
		writeError(w, http.StatusInternalServerError, "load run failed")
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// ListRuns handles GET /runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.LoadBundle(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func formFloat(r *http.Request, field string, def float64) (float64, error) {
	raw := r.PostForm.Get(field)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(field + " must be a number")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
