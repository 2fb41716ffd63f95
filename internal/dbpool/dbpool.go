// Package dbpool manages the control plane's database/sql connection
// pools across the three supported backends (sqlite3, postgres, mysql),
// keyed by DSN so repeated Get calls for the same database share one pool.
package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/carebridge/dccp/internal/config"
)

// Pool manages shared database connections, keyed by DSN.
type Pool struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
}

// New creates an empty connection pool manager.
func New() *Pool {
	return &Pool{pools: make(map[string]*sql.DB)}
}

// Get returns the shared *sql.DB for cfg, opening and pinging a new pool
// on first use for a given DSN.
func (p *Pool) Get(cfg config.DatabaseConfig) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.pools[cfg.DSN]; ok {
		return db, nil
	}

	db, err := p.createPool(cfg)
	if err != nil {
		return nil, err
	}

	p.pools[cfg.DSN] = db
	return db, nil
}

func (p *Pool) createPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := driverName(cfg.Driver)

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("dbpool: open %s: %w", driver, err)
	}

	// SQLite only supports one writer at a time; serializing all access
	// through a single connection avoids "database is locked" errors.
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		}
		if cfg.MaxIdle > 0 {
			db.SetMaxIdleConns(cfg.MaxIdle)
		}
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbpool: connect %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			slog.Warn("dbpool: enable WAL mode failed", "error", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
			slog.Warn("dbpool: set busy_timeout failed", "error", err)
		}
	}

	return db, nil
}

// driverName maps a config-level driver name to the database/sql driver
// registered name, accepting either "sqlite" or "sqlite3" for convenience.
func driverName(cfg string) string {
	if cfg == "sqlite" {
		return "sqlite3"
	}
	return cfg
}

// Close closes every pool this manager opened.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for dsn, db := range p.pools {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", dsn, err))
		}
	}
	p.pools = make(map[string]*sql.DB)

	if len(errs) > 0 {
		return fmt.Errorf("dbpool: errors closing pools: %v", errs)
	}
	return nil
}
