package tournament

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// GenesisHash is the PrevHash of a tournament's first transaction.
const GenesisHash = "0"

// ComputeHash returns the chain hash of t over prev. ID and Hash are excluded so
// the hash can be computed before the row is stored.
func ComputeHash(prev string, t Transaction) string {
	h, _ := blake2b.New256(nil)
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeStr := func(s string) {
		writeU64(uint64(len(s)))
		h.Write([]byte(s))
	}

	writeStr(prev)
	writeU64(t.TournamentID)
	writeU64(t.PlayerID)
	writeStr(string(t.TransactionType))
	writeU64(uint64(t.Amount))
	writeU64(uint64(t.Chips))
	writeStr(t.Reason)
	writeU64(uint64(len(t.EliminatedBy)))
	for _, id := range t.EliminatedBy {
		writeU64(id)
	}
	writeU64(t.ActorUserID)
	writeU64(uint64(t.CreatedAt.UTC().UnixMilli()))
	return hex.EncodeToString(h.Sum(nil))
}

// Seal links t to prev and fills in its hash.
func (t *Transaction) Seal(prev string) {
	if prev == "" {
		prev = GenesisHash
	}
	t.PrevHash = prev
	t.Hash = ComputeHash(prev, *t)
}

// VerifyChain checks that txs, ordered by ID, form an unbroken chain.
func VerifyChain(txs []Transaction) error {
	prev := GenesisHash
	for _, t := range txs {
		if t.PrevHash != prev {
			return fmt.Errorf("%w: transaction %d links to %q, want %q", ErrLedgerCorrupt, t.ID, t.PrevHash, prev)
		}
		if want := ComputeHash(prev, t); t.Hash != want {
			return fmt.Errorf("%w: transaction %d hash mismatch", ErrLedgerCorrupt, t.ID)
		}
		prev = t.Hash
	}
	return nil
}
