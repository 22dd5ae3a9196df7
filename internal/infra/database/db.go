package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute

	// The source is read once per cycle, sequentially.
	sourceMaxOpenConns = 2
)

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// MySQLOptions addresses the campaign source database.
type MySQLOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string
}

// MySQLDSN renders the driver DSN. Timestamps are parsed as naive UTC values;
// the source reader applies the civil-time offset itself.
func MySQLDSN(opts MySQLOptions) string {
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	cfg.DBName = opts.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.TLSConfig = opts.TLS
	return cfg.FormatDSN()
}

// NewMySQLConnection opens the read-only source connection pool and pings it.
// Connections are released back after every query, so nothing is held between cycles.
func NewMySQLConnection(opts MySQLOptions) (*sql.DB, error) {
	db, err := sql.Open("mysql", MySQLDSN(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open source connection: %w", err)
	}

	db.SetMaxOpenConns(sourceMaxOpenConns)
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping source database: %w", err)
	}

	return db, nil
}
