package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/url"
	"sync"

	"hrms-service/config"

	_ "github.com/lib/pq" // Postgres driver
)

var openDB = sql.Open

// Database owns the Postgres connection pool for the lifetime of the process.
// Connect is idempotent: later calls return the pool opened by the first
// successful call.
type Database struct {
	cfg  config.DatabaseConfig
	mu   sync.Mutex
	conn *sql.DB
}

func New(cfg config.DatabaseConfig) *Database {
	return &Database{cfg: cfg}
}

func (d *Database) Connect(ctx context.Context) (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return d.conn, nil
	}

	if d.cfg.Engine != config.EnginePostgres {
		return nil, fmt.Errorf("unsupported database engine: %s", d.cfg.Engine)
	}

	conn, err := openDB("postgres", connectionString(d.cfg))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if d.cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(d.cfg.MaxOpenConns)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	log.Printf("Successfully connected to the Postgres database host=%s dbname=%s", d.cfg.Host, d.cfg.Name)
	d.conn = conn
	return conn, nil
}

func (d *Database) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// Close releases the pool. It is safe to call on a Database that never connected.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// connectionString builds a postgres:// URL so credentials with spaces,
// quotes or '@' survive intact.
func connectionString(cfg config.DatabaseConfig) string {
	query := url.Values{}
	if cfg.SSLMode != "" {
		query.Set("sslmode", cfg.SSLMode)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}
