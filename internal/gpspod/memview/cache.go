package memview

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Cache is an opt-in, on-disk chunk cache keyed by device serial number
// and chunk offset, so repeated CLI invocations against the same device
// don't re-fetch the whole PMEM region every time. It implements
// Persistent.
type Cache struct {
	db           *sql.DB
	deviceSerial string
}

// OpenCache opens (creating if needed) a SQLite-backed chunk cache at
// path, migrated to the latest schema, scoped to deviceSerial.
func OpenCache(path, deviceSerial string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memview: open cache db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("memview: pragma %q: %w", pragma, err)
		}
	}

	c := &Cache{db: db, deviceSerial: deviceSerial}
	if err := c.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrateUp() error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("memview: migrations subtree: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("memview: iofs source: %w", err)
	}
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("memview: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("memview: migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("memview: migrate up: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[memview-migrate] "+format, v...) }
func (l *migrateLogger) Verbose() bool                          { return false }

// Get implements Persistent.
func (c *Cache) Get(chunkOffset int64) ([]byte, bool) {
	var data []byte
	err := c.db.QueryRow(
		`SELECT data FROM pmem_chunks WHERE device_serial = ? AND chunk_offset = ?`,
		c.deviceSerial, chunkOffset,
	).Scan(&data)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put implements Persistent.
func (c *Cache) Put(chunkOffset int64, data []byte) {
	_, _ = c.db.Exec(
		`INSERT INTO pmem_chunks (device_serial, chunk_offset, data) VALUES (?, ?, ?)
		 ON CONFLICT(device_serial, chunk_offset) DO UPDATE SET data = excluded.data`,
		c.deviceSerial, chunkOffset, data,
	)
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
