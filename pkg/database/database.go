package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"time"

	_ "github.com/lib/pq"
)

// Client holds the database handle
type Client struct {
	DB *sql.DB
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum amount of time a connection may be reused
	ConnMaxIdleTime time.Duration // Maximum amount of time a connection may be idle
}

// SSLConfig holds SSL/TLS configuration for database connections
type SSLConfig struct {
	Mode         string // disable, require, verify-ca, verify-full
	RootCertPath string // Path to root CA certificate
}

// DefaultPoolConfig returns defaults sized for a low-traffic checkout service
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// BuildConnectionString builds a PostgreSQL connection string with SSL parameters
func BuildConnectionString(baseURL string, sslCfg *SSLConfig) (string, error) {
	if sslCfg == nil {
		return baseURL, nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}

	query := parsedURL.Query()

	// Set SSL mode (overrides any existing sslmode in URL)
	if sslCfg.Mode != "" {
		query.Set("sslmode", sslCfg.Mode)
	}
	if sslCfg.RootCertPath != "" {
		query.Set("sslrootcert", sslCfg.RootCertPath)
	}

	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}

// NewClient opens a pooled Postgres connection and applies the schema
func NewClient(databaseURL string, sslCfg *SSLConfig) (*Client, error) {
	return NewClientWithPool(databaseURL, DefaultPoolConfig(), sslCfg)
}

// NewClientWithPool opens a Postgres connection with custom pool configuration
func NewClientWithPool(databaseURL string, poolCfg PoolConfig, sslCfg *SSLConfig) (*Client, error) {
	connStr, err := BuildConnectionString(databaseURL, sslCfg)
	if err != nil {
		return nil, fmt.Errorf("failed building connection string: %w", err)
	}

	if sslCfg != nil && sslCfg.Mode != "" && sslCfg.Mode != "disable" {
		log.Printf("🔒 Database SSL enabled (mode: %s)", sslCfg.Mode)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to postgres: %w", err)
	}

	db.SetMaxOpenConns(poolCfg.MaxOpenConns)
	db.SetMaxIdleConns(poolCfg.MaxIdleConns)
	db.SetConnMaxLifetime(poolCfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(poolCfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed connecting to postgres: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed creating schema resources: %w", err)
	}

	log.Println("✅ Database connected and migrations applied")

	return &Client{DB: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Stats returns database connection pool statistics
func (c *Client) Stats() sql.DBStats {
	return c.DB.Stats()
}
