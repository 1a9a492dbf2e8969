// Command tdctl prints tournament state, tables and the ledger straight from
// the store, for floor staff and audits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"tourney-lite/apps/server/internal/config"
	"tourney-lite/apps/server/internal/director"
	"tourney-lite/apps/server/internal/ledger"
	"tourney-lite/apps/server/internal/store"
	"tourney-lite/tournament"

	"github.com/pterm/pterm"
	"github.com/spf13/pflag"
)

const usage = `usage: tdctl [flags] <command>

commands:
  state     clock, counts and prize pool
  tables    seat map of every table
  balance   per-table counts and the pending balance plan
  ledger    transactions, newest first
  verify    recompute the ledger hash chain
`

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML config file (default $TOURNEY_CONFIG)")
	storeMode := pflag.String("store", "", "store mode: sqlite or postgres")
	tournamentID := pflag.Uint64P("tournament", "t", 0, "tournament id")
	playerID := pflag.Uint64P("player", "p", 0, "limit ledger output to one player")
	limit := pflag.IntP("limit", "n", 20, "ledger rows to show")
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 || *tournamentID == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	if *storeMode != "" {
		cfg.Store.Mode = store.NormalizeMode(*storeMode)
	}
	if cfg.Store.Mode == store.ModeMemory {
		fail(errors.New("memory store holds no data between runs; use sqlite or postgres"))
	}
	st, detail, err := store.Open(cfg.Store.Mode, cfg.Store.SQLitePath, cfg.Store.DSN)
	if err != nil {
		fail(err)
	}
	defer st.Close()
	pterm.Debug.Printfln("store: %s", detail)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	d := director.New(director.Options{Store: st, Policy: cfg.Policy, DefaultMaxSeats: cfg.DefaultMaxSeats})
	ledgerService := ledger.NewService(st)

	switch cmd := pflag.Arg(0); cmd {
	case "state":
		err = showState(ctx, d, *tournamentID)
	case "tables":
		err = showTables(ctx, d, *tournamentID)
	case "balance":
		err = showBalance(ctx, d, *tournamentID)
	case "ledger":
		err = showLedger(ctx, ledgerService, *tournamentID, *playerID, *limit)
	case "verify":
		err = verify(ctx, ledgerService, *tournamentID)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	pterm.Error.Println(err)
	os.Exit(1)
}

func showState(ctx context.Context, d *director.Director, tournamentID uint64) error {
	snap, err := d.PeekState(ctx, tournamentID)
	if err != nil {
		return err
	}
	c := snap.Clock
	pterm.DefaultSection.Printfln("Tournament %d", tournamentID)
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"Clock", string(c.Status)},
		{"Level", strconv.Itoa(c.CurrentLevel)},
		{"Remaining", c.TimeRemaining.Round(time.Second).String()},
		{"Entrants", strconv.Itoa(snap.Entrants)},
		{"Active players", strconv.Itoa(snap.ActivePlayers)},
		{"Seated", strconv.Itoa(snap.SeatedPlayers)},
		{"Tables", strconv.Itoa(len(snap.Tables))},
		{"Prize pool", snap.PrizePool.String()},
	}).Render()
}

func showTables(ctx context.Context, d *director.Director, tournamentID uint64) error {
	tables, err := d.GetTables(ctx, tournamentID, "")
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		pterm.Info.Println("no tables")
		return nil
	}
	for _, t := range tables {
		title := fmt.Sprintf("Table %d (%d/%d)", t.ID, t.Occupied(), t.MaxSeats)
		if t.Status == tournament.TableBroken {
			title = pterm.Gray(title + " broken")
		}
		data := pterm.TableData{{"Seat", "Registration"}}
		for _, s := range t.Seats {
			occupant := "-"
			if !s.Empty() {
				occupant = strconv.FormatUint(s.RegistrationID, 10)
			}
			data = append(data, []string{strconv.Itoa(s.SeatNumber), occupant})
		}
		pterm.DefaultSection.Println(title)
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}
	return nil
}

func showBalance(ctx context.Context, d *director.Director, tournamentID uint64) error {
	status, err := d.GetBalanceStatus(ctx, tournamentID)
	if err != nil {
		return err
	}
	data := pterm.TableData{{"Table", "Seated", "Max"}}
	for _, t := range status.Tables {
		data = append(data, []string{
			strconv.FormatUint(t.TableID, 10),
			strconv.Itoa(t.Seated),
			strconv.Itoa(t.MaxSeats),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	if status.Balanced {
		pterm.Success.Printfln("balanced (spread %d)", status.Spread)
	} else {
		moves, err := d.CalculateBalancePlan(ctx, tournamentID)
		if err != nil {
			return err
		}
		pterm.Warning.Printfln("spread %d, %d moves planned", status.Spread, len(moves))
		for _, m := range moves {
			pterm.Printfln("  registration %d: %s -> %s", m.RegistrationID, m.From, m.To)
		}
	}
	if status.BreakSuggested {
		pterm.Info.Printfln("table %d can be broken", status.BreakTableID)
	}
	return nil
}

func showLedger(ctx context.Context, svc *ledger.Service, tournamentID, playerID uint64, limit int) error {
	txs, err := svc.Transactions(ctx, tournamentID, ledger.Query{
		PlayerID: playerID,
		Order:    ledger.OrderDesc,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	data := pterm.TableData{{"ID", "Time", "Player", "Type", "Amount", "Chips", "Actor", "Note"}}
	for _, t := range txs {
		note := t.Reason
		if len(t.EliminatedBy) > 0 {
			note = fmt.Sprintf("by %v", t.EliminatedBy)
		}
		data = append(data, []string{
			strconv.FormatUint(t.ID, 10),
			t.CreatedAt.Local().Format(time.DateTime),
			strconv.FormatUint(t.PlayerID, 10),
			string(t.TransactionType),
			t.Amount.String(),
			strconv.FormatInt(t.Chips, 10),
			strconv.FormatUint(t.ActorUserID, 10),
			note,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pool, err := svc.PrizePool(ctx, tournamentID)
	if err != nil {
		return err
	}
	pterm.Info.Printfln("prize pool %s", pool)
	return nil
}

func verify(ctx context.Context, svc *ledger.Service, tournamentID uint64) error {
	n, err := svc.Verify(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("ledger of tournament %d failed verification after %d rows: %w", tournamentID, n, err)
	}
	pterm.Success.Printfln("ledger of tournament %d verified: %d rows", tournamentID, n)
	return nil
}
