// Package httpapi exposes the bridge coordinator over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/events"
	svc "github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/services/bridge"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/middleware"
	"github.com/thekrishnasarathe/DexiFi-Bridge/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Handler routes bridge API requests to the coordinator service.
type Handler struct {
	bridge   *svc.Service
	bus      *events.Bus
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHandler creates the API handler. The bus feeds the websocket event
// stream and may be nil when streaming is not wired.
func NewHandler(bridge *svc.Service, bus *events.Bus, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		bridge:   bridge,
		bus:      bus,
		upgrader: newUpgrader(),
		log:      log,
	}
}

// Register wires the API routes onto the router.
func (h *Handler) Register(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/locks", h.handleLock).Methods(http.MethodPost)
	v1.HandleFunc("/locks", h.handleListLocks).Methods(http.MethodGet)
	v1.HandleFunc("/locks/{id}", h.handleGetLock).Methods(http.MethodGet)
	v1.HandleFunc("/locks/{id}/release", h.handleRelease).Methods(http.MethodPost)
	v1.HandleFunc("/representations/mint", h.handleMint).Methods(http.MethodPost)
	v1.HandleFunc("/representations/burn", h.handleBurn).Methods(http.MethodPost)
	v1.HandleFunc("/events", h.handleListEvents).Methods(http.MethodGet)
	v1.HandleFunc("/events/ws", h.handleEventsWS).Methods(http.MethodGet)
}

// --- lock registry ---

type lockRequest struct {
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	rec, err := h.bridge.Lock(r.Context(), req.Asset, req.Amount, caller)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleListLocks(w http.ResponseWriter, r *http.Request) {
	recs, err := h.bridge.ListRecords(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locks": recs})
}

func (h *Handler) handleGetLock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.bridge.GetRecord(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type releaseRequest struct {
	Recipient string `json:"recipient"`
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req releaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	rec, err := h.bridge.Release(r.Context(), id, req.Recipient, caller)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- representation asset ---

type mintRequest struct {
	Asset     string `json:"asset"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	if err := h.bridge.IssueRepresentation(r.Context(), req.Asset, req.Recipient, req.Amount, caller); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "minted"})
}

type burnRequest struct {
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	if err := h.bridge.RedeemRepresentation(r.Context(), req.Asset, req.Amount, caller); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "burned"})
}

// --- events ---

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	evs, err := h.bridge.ListEvents(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": evs})
}

// --- helpers ---

func pathID(r *http.Request) (uint64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid lock id %q", raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ledgerErr *svc.LedgerError
	switch {
	case errors.Is(err, svc.ErrInvalidAmount), errors.Is(err, svc.ErrMissingField):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, svc.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, svc.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, svc.ErrAlreadyReleased):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &ledgerErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
