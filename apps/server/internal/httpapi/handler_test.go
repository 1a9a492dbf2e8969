package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tourney-lite/apps/server/internal/director"
	"tourney-lite/apps/server/internal/store"
	"tourney-lite/apps/server/internal/timesource"
	"tourney-lite/tournament"
)

func newMux(t *testing.T) (*http.ServeMux, *director.Director) {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	d := director.New(director.Options{
		Store: st,
		Now:   timesource.NewFake(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)),
	})
	mux := http.NewServeMux()
	NewHTTPHandler(d).RegisterRoutes(mux)
	return mux, d
}

func do(t *testing.T, mux *http.ServeMux, method, path string, body any, actor uint64) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != 0 {
		req.Header.Set(ActorHeader, fmt.Sprint(actor))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rec.Body.String())
	}
	return out
}

func TestPlayerFlow(t *testing.T) {
	mux, _ := newMux(t)

	rec := do(t, mux, http.MethodPost, "/api/tournaments/3/players/11/buyin", map[string]any{"amount": 10000, "chips": 20000}, 5)
	if rec.Code != http.StatusOK {
		t.Fatalf("buyin status=%d body=%s", rec.Code, rec.Body.String())
	}
	res := decode[director.PlayerResult](t, rec)
	if res.Registration.Status != tournament.StatusActive || res.Transaction == nil || res.Transaction.ActorUserID != 5 {
		t.Fatalf("buyin result=%+v", res)
	}

	rec = do(t, mux, http.MethodPost, "/api/tournaments/3/players/11/adjust", map[string]any{"delta": 100}, 5)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("adjust without reason status=%d, want 400", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/api/tournaments/3/players/11/withdraw", map[string]any{"reason": "tired"}, 5)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("withdraw active status=%d, want 422", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/api/tournaments/3/players/11/bustout", map[string]any{"eliminated_by": []uint64{12, 13}}, 5)
	if rec.Code != http.StatusOK {
		t.Fatalf("bustout status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodGet, "/api/tournaments/3/players/11", nil, 0)
	if rec.Code != http.StatusOK {
		t.Fatalf("get player status=%d", rec.Code)
	}
	reg := decode[tournament.Registration](t, rec)
	if reg.Status != tournament.StatusBusted || len(reg.EliminatedBy) != 2 {
		t.Fatalf("registration=%+v", reg)
	}

	rec = do(t, mux, http.MethodGet, "/api/tournaments/3/players/99", nil, 0)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown player status=%d, want 404", rec.Code)
	}
}

func TestMutationsRequireActor(t *testing.T) {
	mux, _ := newMux(t)
	rec := do(t, mux, http.MethodPost, "/api/tournaments/3/tables", map[string]any{"max_seats": 9}, 0)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	rec = do(t, mux, http.MethodGet, "/api/tournaments/0/state", nil, 0)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("tournament 0 status=%d, want 400", rec.Code)
	}
}

func TestClockAndTables(t *testing.T) {
	mux, _ := newMux(t)
	rec := do(t, mux, http.MethodPost, "/api/tournaments/4/clock/start", map[string]any{"seconds": 900}, 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status=%d body=%s", rec.Code, rec.Body.String())
	}
	snap := decode[tournament.Snapshot](t, rec)
	if snap.Clock.Status != tournament.ClockRunning || snap.Clock.TimeRemaining != 900*time.Second {
		t.Fatalf("clock=%+v", snap.Clock)
	}
	rec = do(t, mux, http.MethodPost, "/api/tournaments/4/clock/resume", nil, 1)
	if rec.Code != http.StatusConflict {
		t.Fatalf("resume running status=%d, want 409", rec.Code)
	}
	rec = do(t, mux, http.MethodPost, "/api/tournaments/4/clock/advance", map[string]any{"seconds": 0}, 1)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("advance with zero duration status=%d, want 400", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/api/tournaments/4/tables", map[string]any{"max_seats": 6}, 1)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add table status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(t, mux, http.MethodGet, "/api/tournaments/4/tables?status=gone", nil, 0)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter=%d, want 400", rec.Code)
	}
	rec = do(t, mux, http.MethodDelete, "/api/tournaments/4/tables/77", nil, 1)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("remove unknown table=%d, want 404", rec.Code)
	}
}

func TestClockDurationIsRequired(t *testing.T) {
	mux, _ := newMux(t)
	if rec := do(t, mux, http.MethodPost, "/api/tournaments/5/clock/start", nil, 1); rec.Code != http.StatusBadRequest {
		t.Fatalf("start without seconds status=%d, want 400", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, "/api/tournaments/5/clock/start", map[string]any{"seconds": 900}, 1); rec.Code != http.StatusOK {
		t.Fatalf("start status=%d body=%s", rec.Code, rec.Body.String())
	}

	for _, path := range []string{"clock/pause", "clock/time", "clock/advance", "clock/break", "clock/break/end"} {
		for _, body := range []any{nil, map[string]any{}} {
			rec := do(t, mux, http.MethodPost, "/api/tournaments/5/"+path, body, 1)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("%s body=%v status=%d, want 400", path, body, rec.Code)
			}
		}
	}

	rec := do(t, mux, http.MethodGet, "/api/tournaments/5/state", nil, 0)
	if rec.Code != http.StatusOK {
		t.Fatalf("state status=%d", rec.Code)
	}
	snap := decode[tournament.Snapshot](t, rec)
	if snap.Clock.Status != tournament.ClockRunning || snap.Clock.TimeRemaining != 900*time.Second || snap.Clock.CurrentLevel != 1 {
		t.Fatalf("clock changed by rejected requests: %+v", snap.Clock)
	}

	rec = do(t, mux, http.MethodPost, "/api/tournaments/5/clock/pause", map[string]any{"seconds": 500}, 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause status=%d body=%s", rec.Code, rec.Body.String())
	}
	if snap := decode[tournament.Snapshot](t, rec); snap.Clock.Status != tournament.ClockPaused || snap.Clock.TimeRemaining != 500*time.Second {
		t.Fatalf("paused clock=%+v", snap.Clock)
	}
}

func TestExecuteBalancePartialIsMultiStatus(t *testing.T) {
	mux, _ := newMux(t)
	rec := do(t, mux, http.MethodPost, "/api/tournaments/5/balance/execute", map[string]any{
		"moves": []tournament.Move{{
			RegistrationID: 1,
			From:           tournament.SeatRef{TableID: 1, SeatNumber: 1},
			To:             tournament.SeatRef{TableID: 2, SeatNumber: 1},
		}},
	}, 1)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status=%d body=%s, want 207", rec.Code, rec.Body.String())
	}
	body := decode[struct {
		Result director.BalanceResult `json:"result"`
	}](t, rec)
	if len(body.Result.Failed) != 1 || len(body.Result.Applied) != 0 {
		t.Fatalf("result=%+v", body.Result)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{tournament.ErrTableNotFound, http.StatusNotFound},
		{&tournament.InvalidStateError{Op: "pause", Status: tournament.ClockPaused}, http.StatusConflict},
		{tournament.ErrSeatOccupied, http.StatusConflict},
		{tournament.ErrRebuyNotAllowed, http.StatusUnprocessableEntity},
		{tournament.ErrInvalidSeatNumber, http.StatusBadRequest},
		{&director.PartialFailureError{Cause: tournament.ErrTableNotEmpty}, http.StatusMultiStatus},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("StatusFor(%v)=%d, want %d", tc.err, got, tc.want)
		}
	}
}
