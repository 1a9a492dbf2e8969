package store

import (
	"context"
	"sort"
	"sync"

	"tourney-lite/tournament"
)

// Memory keeps every tournament in process. Update stages its writes on a
// copy and swaps it in only when fn succeeds.
type Memory struct {
	mu     sync.Mutex
	shards map[uint64]*shard
	seq    struct {
		table, registration, transaction uint64
	}
}

type shard struct {
	mu   sync.RWMutex
	data *memData
}

type memData struct {
	clock  *tournament.ClockState
	tables []tournament.Table
	regs   []tournament.Registration
	txs    []tournament.Transaction
}

func (d *memData) clone() *memData {
	out := &memData{
		tables: make([]tournament.Table, len(d.tables)),
		regs:   make([]tournament.Registration, len(d.regs)),
		txs:    make([]tournament.Transaction, len(d.txs)),
	}
	if d.clock != nil {
		c := *d.clock
		out.clock = &c
	}
	for i, t := range d.tables {
		out.tables[i] = t.Clone()
	}
	for i, r := range d.regs {
		out.regs[i] = r.Clone()
	}
	copy(out.txs, d.txs)
	return out
}

func NewMemory() *Memory {
	return &Memory{shards: make(map[uint64]*shard)}
}

func (m *Memory) shard(tournamentID uint64) *shard {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shards[tournamentID]
	if !ok {
		s = &shard{data: &memData{}}
		m.shards[tournamentID] = s
	}
	return s
}

func (m *Memory) nextID(counter *uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
	return *counter
}

func (m *Memory) Update(ctx context.Context, tournamentID uint64, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := m.shard(tournamentID)
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.data.clone()
	if err := fn(&memTx{m: m, id: tournamentID, d: staged}); err != nil {
		return err
	}
	s.data = staged
	return nil
}

func (m *Memory) View(ctx context.Context, tournamentID uint64, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := m.shard(tournamentID)
	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()
	return fn(&memTx{m: m, id: tournamentID, d: snapshot})
}

func (m *Memory) Close() error { return nil }

type memTx struct {
	m  *Memory
	id uint64
	d  *memData
}

func (t *memTx) TournamentID() uint64 { return t.id }

func (t *memTx) GetClock(context.Context) (tournament.ClockState, error) {
	if t.d.clock == nil {
		return tournament.ClockState{}, ErrNotFound
	}
	return *t.d.clock, nil
}

func (t *memTx) PutClock(_ context.Context, c tournament.ClockState) error {
	c.TournamentID = t.id
	t.d.clock = &c
	return nil
}

func (t *memTx) tableIndex(tableID uint64) int {
	for i := range t.d.tables {
		if t.d.tables[i].ID == tableID {
			return i
		}
	}
	return -1
}

func (t *memTx) InsertTable(_ context.Context, tbl *tournament.Table) error {
	tbl.ID = t.m.nextID(&t.m.seq.table)
	tbl.TournamentID = t.id
	t.d.tables = append(t.d.tables, tbl.Clone())
	return nil
}

func (t *memTx) GetTable(_ context.Context, tableID uint64) (tournament.Table, error) {
	i := t.tableIndex(tableID)
	if i < 0 {
		return tournament.Table{}, ErrNotFound
	}
	return t.d.tables[i].Clone(), nil
}

func (t *memTx) ListTables(_ context.Context, status tournament.TableStatus) ([]tournament.Table, error) {
	out := make([]tournament.Table, 0, len(t.d.tables))
	for _, tbl := range t.d.tables {
		if status != "" && tbl.Status != status {
			continue
		}
		out = append(out, tbl.Clone())
	}
	return out, nil
}

func (t *memTx) SetTableStatus(_ context.Context, tableID uint64, status tournament.TableStatus) error {
	i := t.tableIndex(tableID)
	if i < 0 {
		return ErrNotFound
	}
	t.d.tables[i].Status = status
	return nil
}

func (t *memTx) OccupySeat(ctx context.Context, ref tournament.SeatRef, registrationID uint64) error {
	i := t.tableIndex(ref.TableID)
	if i < 0 {
		return ErrNotFound
	}
	tbl := &t.d.tables[i]
	if !tbl.ValidSeat(ref.SeatNumber) {
		return tournament.ErrInvalidSeatNumber
	}
	if !tbl.Seats[ref.SeatNumber-1].Empty() {
		return tournament.ErrSeatOccupied
	}
	if _, err := t.FindSeat(ctx, registrationID); err == nil {
		return ErrConflict
	}
	tbl.Seats[ref.SeatNumber-1].RegistrationID = registrationID
	return nil
}

func (t *memTx) ClearSeat(_ context.Context, ref tournament.SeatRef) error {
	i := t.tableIndex(ref.TableID)
	if i < 0 {
		return ErrNotFound
	}
	tbl := &t.d.tables[i]
	if !tbl.ValidSeat(ref.SeatNumber) {
		return tournament.ErrInvalidSeatNumber
	}
	tbl.Seats[ref.SeatNumber-1].RegistrationID = 0
	return nil
}

func (t *memTx) FindSeat(_ context.Context, registrationID uint64) (tournament.SeatRef, error) {
	for _, tbl := range t.d.tables {
		for _, s := range tbl.Seats {
			if s.RegistrationID == registrationID {
				return tournament.SeatRef{TableID: tbl.ID, SeatNumber: s.SeatNumber}, nil
			}
		}
	}
	return tournament.SeatRef{}, ErrNotFound
}

func (t *memTx) InsertRegistration(_ context.Context, r *tournament.Registration) error {
	for _, existing := range t.d.regs {
		if existing.PlayerID == r.PlayerID {
			return ErrConflict
		}
	}
	r.ID = t.m.nextID(&t.m.seq.registration)
	r.TournamentID = t.id
	t.d.regs = append(t.d.regs, r.Clone())
	return nil
}

func (t *memTx) GetRegistration(_ context.Context, playerID uint64) (tournament.Registration, error) {
	for _, r := range t.d.regs {
		if r.PlayerID == playerID {
			return r.Clone(), nil
		}
	}
	return tournament.Registration{}, ErrNotFound
}

func (t *memTx) GetRegistrationByID(_ context.Context, registrationID uint64) (tournament.Registration, error) {
	for _, r := range t.d.regs {
		if r.ID == registrationID {
			return r.Clone(), nil
		}
	}
	return tournament.Registration{}, ErrNotFound
}

func (t *memTx) ListRegistrations(context.Context) ([]tournament.Registration, error) {
	out := make([]tournament.Registration, len(t.d.regs))
	for i, r := range t.d.regs {
		out[i] = r.Clone()
	}
	return out, nil
}

func (t *memTx) UpdateRegistration(_ context.Context, r tournament.Registration) error {
	for i := range t.d.regs {
		if t.d.regs[i].ID == r.ID {
			r.TournamentID = t.id
			t.d.regs[i] = r.Clone()
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) AppendTransaction(_ context.Context, tx *tournament.Transaction) error {
	tx.ID = t.m.nextID(&t.m.seq.transaction)
	tx.TournamentID = t.id
	row := *tx
	row.EliminatedBy = append([]uint64(nil), tx.EliminatedBy...)
	t.d.txs = append(t.d.txs, row)
	return nil
}

func (t *memTx) LastTransaction(context.Context) (tournament.Transaction, error) {
	if len(t.d.txs) == 0 {
		return tournament.Transaction{}, ErrNotFound
	}
	return t.d.txs[len(t.d.txs)-1], nil
}

func (t *memTx) ListTransactions(_ context.Context, f TransactionFilter) ([]tournament.Transaction, error) {
	out := make([]tournament.Transaction, 0, len(t.d.txs))
	for _, tx := range t.d.txs {
		if f.Type != "" && tx.TransactionType != f.Type {
			continue
		}
		if f.PlayerID != 0 && tx.PlayerID != f.PlayerID {
			continue
		}
		out = append(out, tx)
	}
	if f.Descending {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	return page(out, f.Offset, f.Limit), nil
}

func page(txs []tournament.Transaction, offset, limit int) []tournament.Transaction {
	if offset > 0 {
		if offset >= len(txs) {
			return []tournament.Transaction{}
		}
		txs = txs[offset:]
	}
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return txs
}

func (t *memTx) CountTransactions(_ context.Context, typ tournament.TransactionType) (int, error) {
	n := 0
	for _, tx := range t.d.txs {
		if typ == "" || tx.TransactionType == typ {
			n++
		}
	}
	return n, nil
}

func (t *memTx) SumTransactions(_ context.Context, playerID uint64) (map[tournament.TransactionType]Totals, error) {
	out := make(map[tournament.TransactionType]Totals)
	for _, tx := range t.d.txs {
		if playerID != 0 && tx.PlayerID != playerID {
			continue
		}
		tot := out[tx.TransactionType]
		tot.Count++
		tot.Amount += tx.Amount
		tot.Chips += tx.Chips
		out[tx.TransactionType] = tot
	}
	return out, nil
}
