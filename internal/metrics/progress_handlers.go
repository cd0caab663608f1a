package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kylealanhale/quicli/pkg/progress"
	"github.com/kylealanhale/quicli/pkg/progress/sinks"
)

const (
	defaultRendererLimit = 50
	maxRendererLimit     = 500
)

// StateSource is the read side of sinks.StateSink.
type StateSource interface {
	List(status *sinks.Status) []sinks.RendererState
	Get(id uuid.UUID) (sinks.RendererState, error)
}

// ProgressHandler exposes read-only renderer state endpoints.
type ProgressHandler struct {
	source StateSource
	logger *zap.Logger
}

// NewProgressHandler wires the state source and logger.
func NewProgressHandler(source StateSource, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{source: source, logger: logger}
}

// ListRenderers handles GET /renderers?status=&limit=&offset=. It returns
// {"renderers": [...]} on success, 400 for invalid filters, or 503 when no
// state source is configured.
func (h *ProgressHandler) ListRenderers(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		h.writeError(w, http.StatusServiceUnavailable, "renderer state unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRendererLimit, maxRendererLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *sinks.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s, parseErr := parseStatus(raw)
		if parseErr != nil {
			h.writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &s
	}

	all := h.source.List(status)
	start := min(offset, len(all))
	end := min(start+limit, len(all))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"renderers": toRendererDTOs(all[start:end]),
		"total":     len(all),
	})
}

// GetRenderer handles GET /renderers/{renderer_id}. It returns
// {"renderer": {...}}, 400 for malformed IDs, or 404 for unknown renderers.
func (h *ProgressHandler) GetRenderer(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		h.writeError(w, http.StatusServiceUnavailable, "renderer state unavailable")
		return
	}
	id, err := parseRendererID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.source.Get(id)
	if err != nil {
		if errors.Is(err, sinks.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "renderer not found")
			return
		}
		h.logger.Error("get renderer failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load renderer")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"renderer": toRendererDTO(st)})
}

func (h *ProgressHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("write JSON failed", zap.Error(err))
	}
}

func (h *ProgressHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func parseRendererID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "renderer_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("renderer_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid renderer_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if raw := q.Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (sinks.Status, error) {
	switch strings.ToLower(input) {
	case "running":
		return sinks.StatusRunning, nil
	case "finished", "done":
		return sinks.StatusFinished, nil
	case "failed", "error":
		return sinks.StatusFailed, nil
	default:
		return "", errors.New("invalid status")
	}
}

type rendererDTO struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Text       string     `json:"text"`
	Fraction   *float64   `json:"fraction,omitempty"`
	ElapsedSec *float64   `json:"elapsed_seconds,omitempty"`
	Redraws    int64      `json:"redraws"`
	Skips      int64      `json:"skips"`
	Error      *string    `json:"error,omitempty"`
}

func toRendererDTOs(in []sinks.RendererState) []rendererDTO {
	out := make([]rendererDTO, 0, len(in))
	for _, st := range in {
		out = append(out, toRendererDTO(st))
	}
	return out
}

func toRendererDTO(st sinks.RendererState) rendererDTO {
	dto := rendererDTO{
		ID:         st.ID.String(),
		Kind:       string(st.Kind),
		Status:     string(st.Status),
		StartedAt:  st.StartedAt,
		UpdatedAt:  st.UpdatedAt,
		FinishedAt: st.FinishedAt,
		Text:       st.Text,
		Redraws:    st.Redraws,
		Skips:      st.Skips,
		Error:      st.Error,
	}
	if st.Kind == progress.KindPercentage {
		f := st.Fraction
		dto.Fraction = &f
	} else {
		secs := st.Elapsed.Seconds()
		dto.ElapsedSec = &secs
	}
	return dto
}
