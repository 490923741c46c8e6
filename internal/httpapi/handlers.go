// Package httpapi exposes the connection directory over REST. Identity comes
// from the X-Carelink-User-Id header; an optional shared bearer token gates
// the whole API. All error responses share one JSON shape: {code, message}.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/carelink/internal/directory"
	"github.com/nextlevelbuilder/carelink/internal/store"
	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

// maxRequestBodySize bounds request bodies. The API only carries identifiers.
const maxRequestBodySize = 1 << 16 // 64KB

// Handler serves the directory REST API.
type Handler struct {
	dir   *directory.Service
	token string // expected bearer token (empty = no auth)
}

func NewHandler(dir *directory.Service, token string) *Handler {
	return &Handler{dir: dir, token: token}
}

// Router builds the API route table. The hub's WebSocket endpoint is mounted
// separately by the caller.
func (h *Handler) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /connections/request", h.withAuth(h.handleRequest))
	mux.HandleFunc("GET /connections/pending", h.withAuth(h.handlePending))
	mux.HandleFunc("POST /connections/{id}/approve", h.withAuth(h.handleApprove))
	mux.HandleFunc("POST /connections/{id}/reject", h.withAuth(h.handleReject))
	mux.HandleFunc("GET /connections/elderly-list", h.withAuth(h.handleElderlyList))
	mux.HandleFunc("GET /connections/caregiver-list", h.withAuth(h.handleCaregiverList))
	mux.HandleFunc("DELETE /connections", h.withAuth(h.handleSever))
	return mux
}

// withAuth checks the shared bearer token and resolves the caller identity
// before dispatching.
func (h *Handler) withAuth(next func(w http.ResponseWriter, r *http.Request, callerID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !tokenMatch(extractBearerToken(r), h.token) {
			writeError(w, http.StatusUnauthorized, protocol.ErrUnauthorized, "invalid bearer token")
			return
		}
		callerID := extractUserID(r)
		if callerID == "" {
			writeError(w, http.StatusUnauthorized, protocol.ErrUnauthorized, "X-Carelink-User-Id header is required")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		next(w, r, callerID)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequestBody struct {
	CaregiverID string `json:"caregiverId"`
	ElderlyID   string `json:"elderlyId"`
}

type connectionResponse struct {
	Success    bool                 `json:"success"`
	Connection store.ConnectionData `json:"connection"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request, callerID string) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "invalid JSON: "+err.Error())
		return
	}

	c, err := h.dir.CreateRequest(r.Context(), callerID, body.CaregiverID, body.ElderlyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, connectionResponse{Success: true, Connection: c})
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request, callerID string) {
	elderlyID := r.URL.Query().Get("elderlyId")
	pending, err := h.dir.PendingForElderly(r.Context(), callerID, elderlyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request, callerID string) {
	h.resolve(w, r, callerID, h.dir.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request, callerID string) {
	h.resolve(w, r, callerID, h.dir.Reject)
}

type resolveFunc func(ctx context.Context, callerID string, id uuid.UUID) (store.ConnectionData, error)

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, callerID string, fn resolveFunc) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "invalid connection id")
		return
	}
	c, err := fn(r.Context(), callerID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, connectionResponse{Success: true, Connection: c})
}

func (h *Handler) handleElderlyList(w http.ResponseWriter, r *http.Request, callerID string) {
	caregiverID := r.URL.Query().Get("caregiverId")
	list, err := h.dir.ElderlyForCaregiver(r.Context(), callerID, caregiverID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCaregiverList(w http.ResponseWriter, r *http.Request, callerID string) {
	elderlyID := r.URL.Query().Get("elderlyId")
	list, err := h.dir.CaregiversForElderly(r.Context(), callerID, elderlyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type severResponse struct {
	Success bool `json:"success"`
	Removed bool `json:"removed"`
}

func (h *Handler) handleSever(w http.ResponseWriter, r *http.Request, callerID string) {
	q := r.URL.Query()
	removed, err := h.dir.Sever(r.Context(), callerID, q.Get("caregiverId"), q.Get("elderlyId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, severResponse{Success: true, Removed: removed})
}

// --- Response helpers ---

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeServiceError maps directory errors onto HTTP statuses and stable error
// codes. Stale-state conflicts get their own code so clients refresh instead
// of retrying.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalid):
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, err.Error())
	case errors.Is(err, directory.ErrUnauthorized):
		writeError(w, http.StatusForbidden, protocol.ErrUnauthorized, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, err.Error())
	case errors.Is(err, directory.ErrNotPending):
		writeError(w, http.StatusConflict, protocol.ErrNotPending, err.Error())
	case errors.Is(err, directory.ErrAlreadyConnected):
		writeError(w, http.StatusConflict, protocol.ErrAlreadyConnected, err.Error())
	default:
		slog.Error("directory operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
	}
}
