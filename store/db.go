package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sisu-network/lib/log"

	"github.com/kinecosystem/kin-engine/config"
	"github.com/kinecosystem/kin-engine/types"
)

// balanceKey is the fixed preference key for the cached balance. The entry
// is independent of which account is active; callers invalidate it when they
// switch accounts.
const balanceKey = "kin_cached_balance"

const schema = `CREATE TABLE IF NOT EXISTS prefs (
	name TEXT NOT NULL PRIMARY KEY,
	value BLOB NOT NULL
)`

// Store is the durable key-value storage the engine persists its cached
// balance to.
type Store interface {
	Init() error
	Close() error

	SetEntry(name string, value []byte) error
	GetEntry(name string) ([]byte, bool, error)

	SetBalance(b types.Balance) error
	// GetBalance returns the cached balance, if any. A stale or unparseable
	// entry reads as absent, not as an error.
	GetBalance() (types.Balance, bool, error)
}

type defaultStore struct {
	cfg *config.Engine
	db  *sql.DB
}

func NewStore(cfg *config.Engine) Store {
	return &defaultStore{cfg: cfg}
}

func (s *defaultStore) Init() error {
	dsn := s.cfg.DbPath
	if s.cfg.InMemory {
		dsn = ":memory:"
	}
	if dsn == "" {
		return fmt.Errorf("store: db path cannot be empty")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return err
	}

	s.db = db
	log.Verbose("Engine store is ready at ", dsn)

	return nil
}

func (s *defaultStore) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *defaultStore) SetEntry(name string, value []byte) error {
	_, err := s.db.Exec(
		"INSERT INTO prefs (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		name, value)

	return err
}

func (s *defaultStore) GetEntry(name string) ([]byte, bool, error) {
	row := s.db.QueryRow("SELECT value FROM prefs WHERE name = ?", name)

	var value []byte
	switch err := row.Scan(&value); err {
	case nil:
		return value, true, nil
	case sql.ErrNoRows:
		return nil, false, nil
	default:
		return nil, false, err
	}
}

func (s *defaultStore) SetBalance(b types.Balance) error {
	bz, err := b.Encode()
	if err != nil {
		return err
	}

	return s.SetEntry(balanceKey, bz)
}

func (s *defaultStore) GetBalance() (types.Balance, bool, error) {
	bz, ok, err := s.GetEntry(balanceKey)
	if err != nil || !ok {
		return types.Balance{}, false, err
	}

	b, err := types.DecodeBalance(bz)
	if err != nil {
		log.Warnf("Cached balance entry is unreadable, treating as absent: %v", err)
		return types.Balance{}, false, nil
	}

	return b, true, nil
}
