package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tourney-lite/tournament"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// SQL is the database-backed store. Queries are written with ? placeholders
// and rebound for postgres.
type SQL struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQL) Update(ctx context.Context, tournamentID uint64, fn func(tx Tx) error) error {
	return s.run(ctx, tournamentID, true, fn)
}

func (s *SQL) View(ctx context.Context, tournamentID uint64, fn func(tx Tx) error) error {
	return s.run(ctx, tournamentID, false, fn)
}

func (s *SQL) run(ctx context.Context, tournamentID uint64, write bool, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if write && s.dialect == dialectPostgres {
		// Serializes writers for the same tournament across processes.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(tournamentID)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := fn(&sqlTx{tx: tx, dialect: s.dialect, id: tournamentID}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if !write {
		return tx.Rollback()
	}
	return tx.Commit()
}

func rebind(d dialect, q string) string {
	if d != dialectPostgres || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if isPostgresUniqueViolation(err) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func msToTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func encodeIDs(ids []uint64) string {
	if len(ids) == 0 {
		return "[]"
	}
	raw, _ := json.Marshal(ids)
	return string(raw)
}

func decodeIDs(raw string) ([]uint64, error) {
	out := []uint64{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode eliminated_by: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type sqlTx struct {
	tx      *sql.Tx
	dialect dialect
	id      uint64
}

func (t *sqlTx) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, rebind(t.dialect, q), args...)
}

func (t *sqlTx) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, rebind(t.dialect, q), args...)
}

func (t *sqlTx) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, rebind(t.dialect, q), args...)
}

func (t *sqlTx) TournamentID() uint64 { return t.id }

func (t *sqlTx) GetClock(ctx context.Context) (tournament.ClockState, error) {
	var (
		c           = tournament.ClockState{TournamentID: t.id}
		status      string
		remainingNs int64
		updatedNs   int64
	)
	err := t.queryRow(ctx, `
SELECT status, current_level, time_remaining_ns, updated_at_ns
FROM tourney_clocks
WHERE tournament_id = ?
`, int64(t.id)).Scan(&status, &c.CurrentLevel, &remainingNs, &updatedNs)
	if errors.Is(err, sql.ErrNoRows) {
		return tournament.ClockState{}, ErrNotFound
	}
	if err != nil {
		return tournament.ClockState{}, err
	}
	c.Status = tournament.ClockStatus(status)
	c.TimeRemaining = time.Duration(remainingNs)
	c.UpdatedAt = time.Unix(0, updatedNs).UTC()
	return c, nil
}

func (t *sqlTx) PutClock(ctx context.Context, c tournament.ClockState) error {
	_, err := t.exec(ctx, `
INSERT INTO tourney_clocks (tournament_id, status, current_level, time_remaining_ns, updated_at_ns)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (tournament_id) DO UPDATE SET
    status = excluded.status,
    current_level = excluded.current_level,
    time_remaining_ns = excluded.time_remaining_ns,
    updated_at_ns = excluded.updated_at_ns
`, int64(t.id), string(c.Status), c.CurrentLevel, int64(c.TimeRemaining), c.UpdatedAt.UnixNano())
	return err
}

func (t *sqlTx) InsertTable(ctx context.Context, tbl *tournament.Table) error {
	var id int64
	if err := t.queryRow(ctx, `
INSERT INTO tourney_tables (tournament_id, max_seats, status, created_at_ms)
VALUES (?, ?, ?, ?)
RETURNING id
`, int64(t.id), tbl.MaxSeats, string(tbl.Status), tbl.CreatedAt.UnixMilli()).Scan(&id); err != nil {
		return err
	}
	for n := 1; n <= tbl.MaxSeats; n++ {
		var occupant any
		if rid := tbl.Occupant(n); rid != 0 {
			occupant = int64(rid)
		}
		if _, err := t.exec(ctx, `
INSERT INTO tourney_seats (tournament_id, table_id, seat_number, registration_id)
VALUES (?, ?, ?, ?)
`, int64(t.id), id, n, occupant); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
	}
	tbl.ID = uint64(id)
	tbl.TournamentID = t.id
	return nil
}

func (t *sqlTx) GetTable(ctx context.Context, tableID uint64) (tournament.Table, error) {
	tables, err := t.loadTables(ctx, tableID, "")
	if err != nil {
		return tournament.Table{}, err
	}
	if len(tables) == 0 {
		return tournament.Table{}, ErrNotFound
	}
	return tables[0], nil
}

func (t *sqlTx) ListTables(ctx context.Context, status tournament.TableStatus) ([]tournament.Table, error) {
	return t.loadTables(ctx, 0, status)
}

func (t *sqlTx) loadTables(ctx context.Context, tableID uint64, status tournament.TableStatus) ([]tournament.Table, error) {
	q := `SELECT id, max_seats, status, created_at_ms FROM tourney_tables WHERE tournament_id = ?`
	args := []any{int64(t.id)}
	if tableID != 0 {
		q += ` AND id = ?`
		args = append(args, int64(tableID))
	}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY id ASC`

	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var (
		tables []tournament.Table
		index  = make(map[uint64]int)
	)
	for rows.Next() {
		var (
			id        int64
			maxSeats  int
			st        string
			createdMs int64
		)
		if err := rows.Scan(&id, &maxSeats, &st, &createdMs); err != nil {
			rows.Close()
			return nil, err
		}
		tbl := tournament.NewTable(t.id, maxSeats, msToTime(createdMs))
		tbl.ID = uint64(id)
		tbl.Status = tournament.TableStatus(st)
		index[tbl.ID] = len(tables)
		tables = append(tables, tbl)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(tables) == 0 {
		return []tournament.Table{}, nil
	}

	seatQ := `SELECT table_id, seat_number, registration_id FROM tourney_seats WHERE tournament_id = ? AND registration_id IS NOT NULL`
	seatArgs := []any{int64(t.id)}
	if tableID != 0 {
		seatQ += ` AND table_id = ?`
		seatArgs = append(seatArgs, int64(tableID))
	}
	seatRows, err := t.query(ctx, seatQ, seatArgs...)
	if err != nil {
		return nil, err
	}
	defer seatRows.Close()
	for seatRows.Next() {
		var (
			tid, rid int64
			n        int
		)
		if err := seatRows.Scan(&tid, &n, &rid); err != nil {
			return nil, err
		}
		i, ok := index[uint64(tid)]
		if !ok || !tables[i].ValidSeat(n) {
			continue
		}
		tables[i].Seats[n-1].RegistrationID = uint64(rid)
	}
	return tables, seatRows.Err()
}

func (t *sqlTx) SetTableStatus(ctx context.Context, tableID uint64, status tournament.TableStatus) error {
	res, err := t.exec(ctx, `
UPDATE tourney_tables SET status = ? WHERE tournament_id = ? AND id = ?
`, string(status), int64(t.id), int64(tableID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// OccupySeat is a compare-and-set on the seat row so a concurrent writer that
// slipped past validation still cannot double-book it.
func (t *sqlTx) OccupySeat(ctx context.Context, ref tournament.SeatRef, registrationID uint64) error {
	res, err := t.exec(ctx, `
UPDATE tourney_seats SET registration_id = ?
WHERE tournament_id = ? AND table_id = ? AND seat_number = ? AND registration_id IS NULL
`, int64(registrationID), int64(t.id), int64(ref.TableID), ref.SeatNumber)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var occupant sql.NullInt64
	err = t.queryRow(ctx, `
SELECT registration_id FROM tourney_seats
WHERE tournament_id = ? AND table_id = ? AND seat_number = ?
`, int64(t.id), int64(ref.TableID), ref.SeatNumber).Scan(&occupant)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return t.missingSeat(ctx, ref.TableID)
	case err != nil:
		return err
	default:
		return tournament.ErrSeatOccupied
	}
}

func (t *sqlTx) ClearSeat(ctx context.Context, ref tournament.SeatRef) error {
	res, err := t.exec(ctx, `
UPDATE tourney_seats SET registration_id = NULL
WHERE tournament_id = ? AND table_id = ? AND seat_number = ?
`, int64(t.id), int64(ref.TableID), ref.SeatNumber)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t.missingSeat(ctx, ref.TableID)
	}
	return nil
}

func (t *sqlTx) missingSeat(ctx context.Context, tableID uint64) error {
	var one int
	err := t.queryRow(ctx, `
SELECT 1 FROM tourney_tables WHERE tournament_id = ? AND id = ?
`, int64(t.id), int64(tableID)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return tournament.ErrInvalidSeatNumber
}

func (t *sqlTx) FindSeat(ctx context.Context, registrationID uint64) (tournament.SeatRef, error) {
	var (
		ref tournament.SeatRef
		tid int64
	)
	err := t.queryRow(ctx, `
SELECT table_id, seat_number FROM tourney_seats
WHERE tournament_id = ? AND registration_id = ?
`, int64(t.id), int64(registrationID)).Scan(&tid, &ref.SeatNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return tournament.SeatRef{}, ErrNotFound
	}
	if err != nil {
		return tournament.SeatRef{}, err
	}
	ref.TableID = uint64(tid)
	return ref, nil
}

const registrationColumns = `id, player_id, status, chip_count, paid_amount_cents, rebuys_count, addons_count,
    eliminated_by_json, withdraw_reason, created_at_ms, updated_at_ms`

func (t *sqlTx) scanRegistration(row rowScanner) (tournament.Registration, error) {
	var (
		r                    = tournament.Registration{TournamentID: t.id}
		id, pid              int64
		status, hitmen       string
		paid                 int64
		createdMs, updatedMs int64
	)
	if err := row.Scan(&id, &pid, &status, &r.ChipCount, &paid, &r.RebuysCount, &r.AddonsCount,
		&hitmen, &r.WithdrawReason, &createdMs, &updatedMs); err != nil {
		return tournament.Registration{}, err
	}
	ids, err := decodeIDs(hitmen)
	if err != nil {
		return tournament.Registration{}, err
	}
	r.ID = uint64(id)
	r.PlayerID = uint64(pid)
	r.Status = tournament.RegistrationStatus(status)
	r.PaidAmount = tournament.Money(paid)
	r.EliminatedBy = ids
	r.CreatedAt = msToTime(createdMs)
	r.UpdatedAt = msToTime(updatedMs)
	return r, nil
}

func (t *sqlTx) InsertRegistration(ctx context.Context, r *tournament.Registration) error {
	var id int64
	err := t.queryRow(ctx, `
INSERT INTO tourney_registrations (
    tournament_id, player_id, status, chip_count, paid_amount_cents, rebuys_count, addons_count,
    eliminated_by_json, withdraw_reason, created_at_ms, updated_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`, int64(t.id), int64(r.PlayerID), string(r.Status), r.ChipCount, int64(r.PaidAmount), r.RebuysCount, r.AddonsCount,
		encodeIDs(r.EliminatedBy), r.WithdrawReason, r.CreatedAt.UnixMilli(), r.UpdatedAt.UnixMilli()).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	r.ID = uint64(id)
	r.TournamentID = t.id
	return nil
}

func (t *sqlTx) GetRegistration(ctx context.Context, playerID uint64) (tournament.Registration, error) {
	r, err := t.scanRegistration(t.queryRow(ctx, `SELECT `+registrationColumns+`
FROM tourney_registrations WHERE tournament_id = ? AND player_id = ?`, int64(t.id), int64(playerID)))
	if errors.Is(err, sql.ErrNoRows) {
		return tournament.Registration{}, ErrNotFound
	}
	return r, err
}

func (t *sqlTx) GetRegistrationByID(ctx context.Context, registrationID uint64) (tournament.Registration, error) {
	r, err := t.scanRegistration(t.queryRow(ctx, `SELECT `+registrationColumns+`
FROM tourney_registrations WHERE tournament_id = ? AND id = ?`, int64(t.id), int64(registrationID)))
	if errors.Is(err, sql.ErrNoRows) {
		return tournament.Registration{}, ErrNotFound
	}
	return r, err
}

func (t *sqlTx) ListRegistrations(ctx context.Context) ([]tournament.Registration, error) {
	rows, err := t.query(ctx, `SELECT `+registrationColumns+`
FROM tourney_registrations WHERE tournament_id = ? ORDER BY id ASC`, int64(t.id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []tournament.Registration{}
	for rows.Next() {
		r, err := t.scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *sqlTx) UpdateRegistration(ctx context.Context, r tournament.Registration) error {
	res, err := t.exec(ctx, `
UPDATE tourney_registrations SET
    status = ?, chip_count = ?, paid_amount_cents = ?, rebuys_count = ?, addons_count = ?,
    eliminated_by_json = ?, withdraw_reason = ?, updated_at_ms = ?
WHERE tournament_id = ? AND id = ?
`, string(r.Status), r.ChipCount, int64(r.PaidAmount), r.RebuysCount, r.AddonsCount,
		encodeIDs(r.EliminatedBy), r.WithdrawReason, r.UpdatedAt.UnixMilli(), int64(t.id), int64(r.ID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const transactionColumns = `id, player_id, transaction_type, amount_cents, chips, reason, eliminated_by_json,
    actor_user_id, created_at_ms, prev_hash, hash`

func (t *sqlTx) scanTransaction(row rowScanner) (tournament.Transaction, error) {
	var (
		tx                = tournament.Transaction{TournamentID: t.id}
		id, pid, actor    int64
		typ, hitmen       string
		amount, createdMs int64
	)
	if err := row.Scan(&id, &pid, &typ, &amount, &tx.Chips, &tx.Reason, &hitmen,
		&actor, &createdMs, &tx.PrevHash, &tx.Hash); err != nil {
		return tournament.Transaction{}, err
	}
	ids, err := decodeIDs(hitmen)
	if err != nil {
		return tournament.Transaction{}, err
	}
	if len(ids) > 0 {
		tx.EliminatedBy = ids
	}
	tx.ID = uint64(id)
	tx.PlayerID = uint64(pid)
	tx.TransactionType = tournament.TransactionType(typ)
	tx.Amount = tournament.Money(amount)
	tx.ActorUserID = uint64(actor)
	tx.CreatedAt = msToTime(createdMs)
	return tx, nil
}

func (t *sqlTx) AppendTransaction(ctx context.Context, tx *tournament.Transaction) error {
	var id int64
	if err := t.queryRow(ctx, `
INSERT INTO tourney_transactions (
    tournament_id, player_id, transaction_type, amount_cents, chips, reason, eliminated_by_json,
    actor_user_id, created_at_ms, prev_hash, hash
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`, int64(t.id), int64(tx.PlayerID), string(tx.TransactionType), int64(tx.Amount), tx.Chips, tx.Reason,
		encodeIDs(tx.EliminatedBy), int64(tx.ActorUserID), tx.CreatedAt.UnixMilli(), tx.PrevHash, tx.Hash).Scan(&id); err != nil {
		return err
	}
	tx.ID = uint64(id)
	tx.TournamentID = t.id
	return nil
}

func (t *sqlTx) LastTransaction(ctx context.Context) (tournament.Transaction, error) {
	tx, err := t.scanTransaction(t.queryRow(ctx, `SELECT `+transactionColumns+`
FROM tourney_transactions WHERE tournament_id = ? ORDER BY id DESC LIMIT 1`, int64(t.id)))
	if errors.Is(err, sql.ErrNoRows) {
		return tournament.Transaction{}, ErrNotFound
	}
	return tx, err
}

func (t *sqlTx) ListTransactions(ctx context.Context, f TransactionFilter) ([]tournament.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM tourney_transactions WHERE tournament_id = ?`
	args := []any{int64(t.id)}
	if f.Type != "" {
		q += ` AND transaction_type = ?`
		args = append(args, string(f.Type))
	}
	if f.PlayerID != 0 {
		q += ` AND player_id = ?`
		args = append(args, int64(f.PlayerID))
	}
	if f.Descending {
		q += ` ORDER BY id DESC`
	} else {
		q += ` ORDER BY id ASC`
	}
	switch {
	case f.Limit > 0:
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	case f.Offset > 0 && t.dialect == dialectSQLite:
		q += ` LIMIT -1`
	}
	if f.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []tournament.Transaction{}
	for rows.Next() {
		tx, err := t.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (t *sqlTx) CountTransactions(ctx context.Context, typ tournament.TransactionType) (int, error) {
	q := `SELECT COUNT(*) FROM tourney_transactions WHERE tournament_id = ?`
	args := []any{int64(t.id)}
	if typ != "" {
		q += ` AND transaction_type = ?`
		args = append(args, string(typ))
	}
	var n int
	err := t.queryRow(ctx, q, args...).Scan(&n)
	return n, err
}

func (t *sqlTx) SumTransactions(ctx context.Context, playerID uint64) (map[tournament.TransactionType]Totals, error) {
	q := `
SELECT transaction_type, COUNT(*), COALESCE(SUM(amount_cents), 0), COALESCE(SUM(chips), 0)
FROM tourney_transactions
WHERE tournament_id = ?`
	args := []any{int64(t.id)}
	if playerID != 0 {
		q += ` AND player_id = ?`
		args = append(args, int64(playerID))
	}
	q += ` GROUP BY transaction_type`

	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[tournament.TransactionType]Totals)
	for rows.Next() {
		var (
			typ    string
			tot    Totals
			amount int64
		)
		if err := rows.Scan(&typ, &tot.Count, &amount, &tot.Chips); err != nil {
			return nil, err
		}
		tot.Amount = tournament.Money(amount)
		out[tournament.TransactionType(typ)] = tot
	}
	return out, rows.Err()
}
