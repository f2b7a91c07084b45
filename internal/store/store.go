package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// ErrNotFound is returned when a named bank is not in the catalogue.
var ErrNotFound = errors.New("not found")

// ErrBankExists is returned when saving over an existing bank without replace.
var ErrBankExists = errors.New("bank already exists")

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store is the bank catalogue. It holds parsed banks and import hashes,
// never quiz session state.
type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens a SQLite catalogue at path. ":memory:" gives a private
// in-memory database.
func New(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return Open(context.Background(), DriverSQLite, dsn)
}

// Open connects to the catalogue and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:optest.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/optest?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases from splitting per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports the backend in use.
func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS banks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL DEFAULT '',
		imported_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		bank_id TEXT NOT NULL REFERENCES banks(id),
		position INTEGER NOT NULL,
		chapter TEXT NOT NULL,
		prompt TEXT NOT NULL,
		correct_letter TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (bank_id, position)
	);

	CREATE TABLE IF NOT EXISTS options (
		bank_id TEXT NOT NULL REFERENCES banks(id),
		question_pos INTEGER NOT NULL,
		position INTEGER NOT NULL,
		letter TEXT NOT NULL,
		text TEXT NOT NULL,
		is_correct INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (bank_id, question_pos, position)
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at BIGINT NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind rewrites "?" placeholders into "$n" for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
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

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
