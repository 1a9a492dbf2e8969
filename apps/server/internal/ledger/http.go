package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tourney-lite/tournament"
)

// HTTPHandler exposes read-only audit endpoints over the ledger.
type HTTPHandler struct {
	ledger *Service
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(ledgerService *Service) *HTTPHandler {
	return &HTTPHandler{ledger: ledgerService}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tournaments/{id}/ledger", h.handleList)
	mux.HandleFunc("GET /api/tournaments/{id}/ledger/count", h.handleCount)
	mux.HandleFunc("GET /api/tournaments/{id}/ledger/summary", h.handleSummary)
	mux.HandleFunc("GET /api/tournaments/{id}/ledger/verify", h.handleVerify)
	mux.HandleFunc("GET /api/tournaments/{id}/players/{player}/reconcile", h.handleReconcile)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	values := r.URL.Query()
	q := Query{
		Type:     tournament.TransactionType(strings.TrimSpace(values.Get("type"))),
		PlayerID: parseUint(values.Get("player_id")),
		Order:    Order(strings.ToLower(strings.TrimSpace(values.Get("order")))),
		Limit:    parseInt(values.Get("limit")),
		Offset:   parseInt(values.Get("offset")),
	}
	if q.Type != "" && !q.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown transaction type")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.Transactions(ctx, tournamentID, q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query transactions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tournament_id": tournamentID,
		"items":         items,
	})
}

func (h *HTTPHandler) handleCount(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	typ := tournament.TransactionType(strings.TrimSpace(r.URL.Query().Get("type")))
	if typ != "" && !typ.Valid() {
		writeError(w, http.StatusBadRequest, "unknown transaction type")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	n, err := h.ledger.Count(ctx, tournamentID, typ)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "count transactions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tournament_id": tournamentID,
		"type":          typ,
		"count":         n,
	})
}

func (h *HTTPHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	sum, err := h.ledger.Summary(ctx, tournamentID, parseUint(r.URL.Query().Get("player_id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "summarize ledger failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *HTTPHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	n, err := h.ledger.Verify(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, tournament.ErrLedgerCorrupt) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"tournament_id": tournamentID,
				"rows":          n,
				"ok":            false,
				"error":         err.Error(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "verify ledger failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tournament_id": tournamentID,
		"rows":          n,
		"ok":            true,
	})
}

func (h *HTTPHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	playerID, ok := pathID(w, r, "player")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rec, err := h.ledger.Reconcile(ctx, tournamentID, playerID)
	if err != nil {
		if errors.Is(err, tournament.ErrRegistrationNotFound) {
			writeError(w, http.StatusNotFound, "registration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "reconcile failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reconciliation": rec,
		"drift":          rec.Drift(),
	})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id := parseUint(r.PathValue(name))
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func parseUint(raw string) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
