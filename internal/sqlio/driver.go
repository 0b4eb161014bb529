// Package sqlio moves frames in and out of SQL databases through
// database/sql. Drivers are looked up by a short name (duckdb, postgres,
// sqlite) from a registry.
package sqlio

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"  // postgres driver
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	_ "modernc.org/sqlite"              // sqlite driver
)

// Driver describes how to talk to one database engine.
type Driver struct {
	// Name is the user-facing name, e.g. "postgres".
	Name string
	// SQLDriver is the database/sql driver name, e.g. "pgx".
	SQLDriver string
	// Numbered placeholders ($1, $2) instead of "?".
	Numbered bool
	// DefaultDSN is used when no DSN is given.
	DefaultDSN string
}

// Placeholder returns the bind marker for the i-th (0-based) argument.
func (d Driver) Placeholder(i int) string {
	if d.Numbered {
		return "$" + strconv.Itoa(i+1)
	}
	return "?"
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

func init() {
	Register(Driver{Name: "duckdb", SQLDriver: "duckdb", DefaultDSN: ""})
	Register(Driver{Name: "postgres", SQLDriver: "pgx", Numbered: true})
	Register(Driver{Name: "sqlite", SQLDriver: "sqlite", DefaultDSN: ":memory:"})
}

// Register adds or replaces a driver.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[d.Name] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return Driver{}, &UnknownDriverError{Name: name, Available: driverNamesLocked()}
	}
	return d, nil
}

// Drivers returns all registered driver names (sorted).
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return driverNamesLocked()
}

func driverNamesLocked() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownDriverError is returned when an unknown driver is requested.
type UnknownDriverError struct {
	Name      string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown database driver %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Open connects to a database and verifies the connection.
// If logger is nil, a discard logger is used.
func Open(ctx context.Context, driverName, dsn string, logger *slog.Logger) (*sql.DB, Driver, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d, err := Lookup(driverName)
	if err != nil {
		return nil, Driver{}, err
	}
	if dsn == "" {
		dsn = d.DefaultDSN
	}

	logger.Debug("opening database", slog.String("driver", d.Name))

	db, err := sql.Open(d.SQLDriver, dsn)
	if err != nil {
		return nil, Driver{}, fmt.Errorf("failed to open %s connection: %w", d.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Driver{}, fmt.Errorf("failed to ping %s: %w", d.Name, err)
	}
	return db, d, nil
}

// QuoteIdent quotes a possibly schema-qualified identifier.
func QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
