// Package sqlitesink persists every modification of a scalar time-series
// input to an append-only SQLite table, grounded on the pack's own
// append-only usage store: database/sql over the pure-Go modernc.org/sqlite
// driver, a migrate-on-open schema, and one INSERT per record.
package sqlitesink

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// Config names the database file and table a sink node writes to.
type Config struct {
	DBPath string
	Table  string
}

// Store opens (creating if necessary) the sink's backing database.
type Store struct {
	db    *sql.DB
	table string
}

// Open opens path (WAL mode, like every other SQLite store in this
// repository) and migrates the sink table into existence.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlitesink: opening %s: %w", cfg.DBPath, err)
	}
	s := &Store{db: db, table: cfg.Table}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitesink: migrating schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tick_time INTEGER NOT NULL,
	value TEXT NOT NULL
)`, s.table))
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) insert(now tstime.EngineTime, value string) error {
	_, err := s.db.Exec(fmt.Sprintf("INSERT INTO %s (tick_time, value) VALUES (?, ?)", s.table), int64(now), value)
	return err
}

// NewNode constructs a sink node named name that writes a row for every
// tick its single input port "value" is modified, rendering the value via
// fmt through tsvalue.Stringer so the same sink works for any scalar
// element type.
func NewNode(name string, store *Store, elemType string) *graph.Node {
	return &graph.Node{
		Name: name,
		Kind: graph.KindSink,
		Sig: graph.Signature{
			Inputs: []graph.Port{{Name: "value", Kind: graph.KindScalar, ElemType: elemType}},
		},
		Eval: func(now tstime.EngineTime, inputs map[string]tsvalue.Output, _ map[string]tsvalue.Output) error {
			in, ok := inputs["value"]
			if !ok || !in.Modified(now) {
				return nil
			}
			s, ok := in.(tsvalue.Stringer)
			if !ok {
				return fmt.Errorf("sqlitesink %q: input value is not renderable", name)
			}
			return store.insert(now, s.ValueString())
		},
		OnStop: func(map[string]tsvalue.Output) error {
			return nil
		},
	}
}
