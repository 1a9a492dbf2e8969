package store

import (
	"fmt"
	"strings"
)

const (
	ModeMemory   = "memory"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
)

// NormalizeMode maps the accepted spellings of a store mode onto one name.
func NormalizeMode(raw string) string {
	switch mode := strings.ToLower(strings.TrimSpace(raw)); mode {
	case "", ModeSQLite, "local", "sqlite3":
		return ModeSQLite
	case ModeMemory, "mem":
		return ModeMemory
	case ModePostgres, "postgresql", "pg", "db":
		return ModePostgres
	default:
		return mode
	}
}

// Open builds the store named by mode. sqlitePath falls back to a file under
// the user config dir.
func Open(mode, sqlitePath, dsn string) (Store, string, error) {
	mode = NormalizeMode(mode)
	switch mode {
	case ModeMemory:
		return NewMemory(), mode, nil
	case ModeSQLite:
		if strings.TrimSpace(sqlitePath) == "" {
			p, err := localDatabasePath()
			if err != nil {
				return nil, mode, err
			}
			sqlitePath = p
		}
		s, err := NewSQLite(sqlitePath)
		if err != nil {
			return nil, mode, err
		}
		return s, mode, nil
	case ModePostgres:
		s, err := NewPostgres(dsn)
		if err != nil {
			return nil, mode, err
		}
		return s, mode, nil
	default:
		return nil, mode, fmt.Errorf("invalid store mode %q (supported: %s, %s, %s)", mode, ModeMemory, ModeSQLite, ModePostgres)
	}
}
