// Package httpapi maps one JSON request to one director call. It holds no
// business rules of its own.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tourney-lite/apps/server/internal/director"
	"tourney-lite/tournament"
)

// ActorHeader carries the audit user id of the caller.
const ActorHeader = "X-Actor-User-ID"

const requestTimeout = 5 * time.Second

type HTTPHandler struct {
	director *director.Director
}

type errorResponse struct {
	Error string `json:"error"`
}

// clockRequest carries a duration. Seconds is required wherever it is read;
// an absent value is never taken as zero.
type clockRequest struct {
	Seconds *int64 `json:"seconds"`
}

type tableRequest struct {
	MaxSeats int `json:"max_seats"`
}

type seatRequest struct {
	RegistrationID uint64 `json:"registration_id"`
	TableID        uint64 `json:"table_id"`
	SeatNumber     int    `json:"seat_number"`
}

type movesRequest struct {
	Moves []tournament.Move `json:"moves"`
}

type registerRequest struct {
	PlayerID uint64 `json:"player_id"`
}

type purchaseRequest struct {
	Amount tournament.Money `json:"amount"`
	Chips  int64            `json:"chips"`
}

type bustoutRequest struct {
	EliminatedBy []uint64 `json:"eliminated_by"`
}

type adjustRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type withdrawRequest struct {
	Reason string `json:"reason"`
}

func NewHTTPHandler(d *director.Director) *HTTPHandler {
	return &HTTPHandler{director: d}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tournaments/{id}/state", h.handleState)

	mux.HandleFunc("POST /api/tournaments/{id}/clock/start", h.handleClockStart)
	mux.HandleFunc("POST /api/tournaments/{id}/clock/pause", h.handleClockPause)
	mux.HandleFunc("POST /api/tournaments/{id}/clock/resume", h.handleClockResume)
	mux.HandleFunc("POST /api/tournaments/{id}/clock/advance", h.handleClockAdvance)
	mux.HandleFunc("POST /api/tournaments/{id}/clock/break", h.handleBreakStart)
	mux.HandleFunc("POST /api/tournaments/{id}/clock/break/end", h.handleBreakEnd)
	mux.HandleFunc("POST /api/tournaments/{id}/clock/time", h.handleAddTime)
	mux.HandleFunc("POST /api/tournaments/{id}/finish", h.handleFinish)

	mux.HandleFunc("GET /api/tournaments/{id}/tables", h.handleListTables)
	mux.HandleFunc("POST /api/tournaments/{id}/tables", h.handleAddTable)
	mux.HandleFunc("DELETE /api/tournaments/{id}/tables/{table}", h.handleRemoveTable)
	mux.HandleFunc("POST /api/tournaments/{id}/tables/{table}/break", h.handleExecuteBreak)
	mux.HandleFunc("GET /api/tournaments/{id}/seated", h.handleSeatedCount)

	mux.HandleFunc("POST /api/tournaments/{id}/seats/validate", h.handleValidateSeat)
	mux.HandleFunc("POST /api/tournaments/{id}/seats/move", h.handleMove)
	mux.HandleFunc("POST /api/tournaments/{id}/seats/unseat", h.handleUnseat)

	mux.HandleFunc("GET /api/tournaments/{id}/balance", h.handleBalanceStatus)
	mux.HandleFunc("GET /api/tournaments/{id}/balance/plan", h.handleBalancePlan)
	mux.HandleFunc("POST /api/tournaments/{id}/balance/execute", h.handleExecuteBalance)
	mux.HandleFunc("GET /api/tournaments/{id}/balance/break", h.handleSuggestBreak)

	mux.HandleFunc("GET /api/tournaments/{id}/players", h.handleListPlayers)
	mux.HandleFunc("POST /api/tournaments/{id}/players", h.handleRegister)
	mux.HandleFunc("GET /api/tournaments/{id}/players/{player}", h.handleGetPlayer)
	mux.HandleFunc("POST /api/tournaments/{id}/players/{player}/buyin", h.handleBuyIn)
	mux.HandleFunc("POST /api/tournaments/{id}/players/{player}/rebuy", h.handleRebuy)
	mux.HandleFunc("POST /api/tournaments/{id}/players/{player}/addon", h.handleAddon)
	mux.HandleFunc("POST /api/tournaments/{id}/players/{player}/bustout", h.handleBustout)
	mux.HandleFunc("POST /api/tournaments/{id}/players/{player}/adjust", h.handleAdjust)
	mux.HandleFunc("POST /api/tournaments/{id}/players/{player}/withdraw", h.handleWithdraw)
}

func (h *HTTPHandler) handleState(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	snap, err := h.director.GetState(ctx, tournamentID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type clockFunc func(ctx context.Context, tournamentID, actor uint64, d time.Duration) (tournament.Snapshot, error)

func (h *HTTPHandler) clock(fn clockFunc, withBody bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tournamentID, actor, ok := mutation(w, r)
		if !ok {
			return
		}
		var d time.Duration
		if withBody {
			var req clockRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.Seconds == nil {
				writeError(w, http.StatusBadRequest, "seconds is required")
				return
			}
			d = time.Duration(*req.Seconds) * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		snap, err := fn(ctx, tournamentID, actor, d)
		if err != nil {
			writeDirectorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func (h *HTTPHandler) handleClockStart(w http.ResponseWriter, r *http.Request) {
	h.clock(h.director.StartClock, true)(w, r)
}

func (h *HTTPHandler) handleClockPause(w http.ResponseWriter, r *http.Request) {
	h.clock(h.director.PauseClock, true)(w, r)
}

func (h *HTTPHandler) handleClockResume(w http.ResponseWriter, r *http.Request) {
	h.clock(func(ctx context.Context, tournamentID, actor uint64, _ time.Duration) (tournament.Snapshot, error) {
		return h.director.ResumeClock(ctx, tournamentID, actor)
	}, false)(w, r)
}

func (h *HTTPHandler) handleClockAdvance(w http.ResponseWriter, r *http.Request) {
	h.clock(h.director.AdvanceLevel, true)(w, r)
}

func (h *HTTPHandler) handleBreakStart(w http.ResponseWriter, r *http.Request) {
	h.clock(h.director.StartBreak, true)(w, r)
}

func (h *HTTPHandler) handleBreakEnd(w http.ResponseWriter, r *http.Request) {
	h.clock(h.director.EndBreak, true)(w, r)
}

func (h *HTTPHandler) handleAddTime(w http.ResponseWriter, r *http.Request) {
	h.clock(h.director.AddTime, true)(w, r)
}

func (h *HTTPHandler) handleFinish(w http.ResponseWriter, r *http.Request) {
	h.clock(func(ctx context.Context, tournamentID, actor uint64, _ time.Duration) (tournament.Snapshot, error) {
		return h.director.FinishTournament(ctx, tournamentID, actor)
	}, false)(w, r)
}

func (h *HTTPHandler) handleListTables(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	status := tournament.TableStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown table status")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	tables, err := h.director.GetTables(ctx, tournamentID, status)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tournament_id": tournamentID,
		"tables":        tables,
	})
}

func (h *HTTPHandler) handleAddTable(w http.ResponseWriter, r *http.Request) {
	tournamentID, actor, ok := mutation(w, r)
	if !ok {
		return
	}
	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	table, snap, err := h.director.AddTable(ctx, tournamentID, actor, req.MaxSeats)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"table": table,
		"state": snap,
	})
}

func (h *HTTPHandler) handleRemoveTable(w http.ResponseWriter, r *http.Request) {
	tournamentID, actor, ok := mutation(w, r)
	if !ok {
		return
	}
	tableID, ok := pathID(w, r, "table")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	snap, err := h.director.RemoveTable(ctx, tournamentID, actor, tableID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *HTTPHandler) handleSeatedCount(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	n, err := h.director.GetSeatedPlayerCount(ctx, tournamentID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tournament_id":  tournamentID,
		"seated_players": n,
	})
}

func (h *HTTPHandler) handleValidateSeat(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req seatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	seat, err := h.director.ValidateAssignment(ctx, tournamentID, req.RegistrationID, req.TableID, req.SeatNumber)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"seat": seat,
	})
}

func (h *HTTPHandler) handleMove(w http.ResponseWriter, r *http.Request) {
	tournamentID, actor, ok := mutation(w, r)
	if !ok {
		return
	}
	var req seatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	snap, err := h.director.MovePlayer(ctx, tournamentID, actor, req.RegistrationID, req.TableID, req.SeatNumber)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *HTTPHandler) handleUnseat(w http.ResponseWriter, r *http.Request) {
	tournamentID, actor, ok := mutation(w, r)
	if !ok {
		return
	}
	var req seatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	snap, err := h.director.UnseatPlayer(ctx, tournamentID, actor, req.RegistrationID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *HTTPHandler) handleBalanceStatus(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	status, err := h.director.GetBalanceStatus(ctx, tournamentID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *HTTPHandler) handleBalancePlan(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	moves, err := h.director.CalculateBalancePlan(ctx, tournamentID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movesRequest{Moves: moves})
}

func (h *HTTPHandler) handleSuggestBreak(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	sug, err := h.director.SuggestTableBreak(ctx, tournamentID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

func (h *HTTPHandler) handleExecuteBalance(w http.ResponseWriter, r *http.Request) {
	tournamentID, actor, ok := mutation(w, r)
	if !ok {
		return
	}
	var req movesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := h.director.ExecuteBalance(ctx, tournamentID, actor, req.Moves)
	writeBalanceResult(w, res, err)
}

func (h *HTTPHandler) handleExecuteBreak(w http.ResponseWriter, r *http.Request) {
	tournamentID, actor, ok := mutation(w, r)
	if !ok {
		return
	}
	tableID, ok := pathID(w, r, "table")
	if !ok {
		return
	}
	var req movesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := h.director.ExecuteTableBreak(ctx, tournamentID, actor, tableID, req.Moves)
	writeBalanceResult(w, res, err)
}

// writeBalanceResult answers 207 when some moves were committed and others
// were not, so the caller re-plans instead of retrying the whole request.
func writeBalanceResult(w http.ResponseWriter, res director.BalanceResult, err error) {
	var partial *director.PartialFailureError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.As(err, &partial):
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"error":  err.Error(),
			"result": partial.Result,
		})
	default:
		writeDirectorError(w, err)
	}
}

func (h *HTTPHandler) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	regs, err := h.director.ListRegistrations(ctx, tournamentID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tournament_id": tournamentID,
		"registrations": regs,
	})
}

func (h *HTTPHandler) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	playerID, ok := pathID(w, r, "player")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	reg, err := h.director.GetRegistration(ctx, tournamentID, playerID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	tournamentID, actor, ok := mutation(w, r)
	if !ok {
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := h.director.RegisterPlayer(ctx, tournamentID, actor, req.PlayerID)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// player decodes the body for a per-player operation and runs call.
func player[T any](w http.ResponseWriter, r *http.Request, call func(ctx context.Context, tournamentID, actor, playerID uint64, req T) (director.PlayerResult, error)) {
	tournamentID, actor, ok := mutation(w, r)
	if !ok {
		return
	}
	playerID, ok := pathID(w, r, "player")
	if !ok {
		return
	}
	var req T
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := call(ctx, tournamentID, actor, playerID, req)
	if err != nil {
		writeDirectorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleBuyIn(w http.ResponseWriter, r *http.Request) {
	player(w, r, func(ctx context.Context, tournamentID, actor, playerID uint64, req purchaseRequest) (director.PlayerResult, error) {
		return h.director.ProcessBuyIn(ctx, tournamentID, actor, playerID, req.Amount, req.Chips)
	})
}

func (h *HTTPHandler) handleRebuy(w http.ResponseWriter, r *http.Request) {
	player(w, r, func(ctx context.Context, tournamentID, actor, playerID uint64, req purchaseRequest) (director.PlayerResult, error) {
		return h.director.ProcessRebuy(ctx, tournamentID, actor, playerID, req.Amount, req.Chips)
	})
}

func (h *HTTPHandler) handleAddon(w http.ResponseWriter, r *http.Request) {
	player(w, r, func(ctx context.Context, tournamentID, actor, playerID uint64, req purchaseRequest) (director.PlayerResult, error) {
		return h.director.ProcessAddon(ctx, tournamentID, actor, playerID, req.Amount, req.Chips)
	})
}

func (h *HTTPHandler) handleBustout(w http.ResponseWriter, r *http.Request) {
	player(w, r, func(ctx context.Context, tournamentID, actor, playerID uint64, req bustoutRequest) (director.PlayerResult, error) {
		return h.director.ProcessBustout(ctx, tournamentID, actor, playerID, req.EliminatedBy)
	})
}

func (h *HTTPHandler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	player(w, r, func(ctx context.Context, tournamentID, actor, playerID uint64, req adjustRequest) (director.PlayerResult, error) {
		return h.director.ProcessChipAdjustment(ctx, tournamentID, actor, playerID, req.Delta, req.Reason)
	})
}

func (h *HTTPHandler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	player(w, r, func(ctx context.Context, tournamentID, actor, playerID uint64, req withdrawRequest) (director.PlayerResult, error) {
		return h.director.ProcessWithdrawal(ctx, tournamentID, actor, playerID, req.Reason)
	})
}

// StatusFor maps a director error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, tournament.ErrPartialBalanceFailure):
		return http.StatusMultiStatus
	case errors.Is(err, tournament.ErrTournamentNotFound),
		errors.Is(err, tournament.ErrTableNotFound),
		errors.Is(err, tournament.ErrRegistrationNotFound):
		return http.StatusNotFound
	case errors.Is(err, tournament.ErrInvalidTournamentState),
		errors.Is(err, tournament.ErrSeatOccupied),
		errors.Is(err, tournament.ErrTableFull),
		errors.Is(err, tournament.ErrTableNotEmpty),
		errors.Is(err, tournament.ErrTableBroken),
		errors.Is(err, tournament.ErrAlreadyRegistered),
		errors.Is(err, tournament.ErrLedgerCorrupt):
		return http.StatusConflict
	case errors.Is(err, tournament.ErrPlayerNotActive),
		errors.Is(err, tournament.ErrRebuyNotAllowed),
		errors.Is(err, tournament.ErrAddonNotAllowed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tournament.ErrInvalidSeatNumber),
		errors.Is(err, tournament.ErrInvalidAmount),
		errors.Is(err, tournament.ErrInvalidDuration),
		errors.Is(err, tournament.ErrReasonRequired):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeDirectorError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// mutation reads the tournament id and the acting user every write needs.
func mutation(w http.ResponseWriter, r *http.Request) (tournamentID, actor uint64, ok bool) {
	tournamentID, ok = pathID(w, r, "id")
	if !ok {
		return 0, 0, false
	}
	actor = parseUint(r.Header.Get(ActorHeader))
	if actor == 0 {
		writeError(w, http.StatusBadRequest, "missing "+ActorHeader)
		return 0, 0, false
	}
	return tournamentID, actor, true
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

// decodeJSON accepts an empty body as the zero request.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
