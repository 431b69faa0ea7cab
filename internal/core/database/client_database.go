package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/markdave123-py/cortexprep/internal/config"
)

// DatabaseClient owns the connection pool for the configured warehouse dialect.
type DatabaseClient struct {
	db        *sql.DB
	dialect   Dialect
	warehouse WarehouseSpec
	log       *zap.Logger
}

// NewDatabaseClient opens and pings the warehouse selected by cfg.Dialect.
func NewDatabaseClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	dialect, err := DialectFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name(), err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name(), err)
	}

	client := NewWithDB(db, dialect, log)
	if dialect.Name() == config.DialectSnowflake {
		client.warehouse = DefaultWarehouseSpec(cfg.Warehouse)
	}
	return client, nil
}

// NewWithDB wraps an already opened pool.
func NewWithDB(db *sql.DB, dialect Dialect, log *zap.Logger) *DatabaseClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &DatabaseClient{db: db, dialect: dialect, log: log}
}

func dataSourceName(cfg *config.Config) (string, error) {
	switch cfg.Dialect {
	case config.DialectSnowflake:
		dsn, err := gosnowflake.DSN(&gosnowflake.Config{
			Account:   cfg.Account,
			User:      cfg.User,
			Password:  cfg.Password,
			Role:      cfg.Role,
			Warehouse: cfg.Warehouse,
			Database:  cfg.Database,
			Schema:    cfg.Schema,
		})
		if err != nil {
			return "", fmt.Errorf("snowflake dsn: %w", err)
		}
		return dsn, nil
	case config.DialectPostgres:
		if cfg.DatabaseURL == "" {
			return "", fmt.Errorf("DATABASE_URL is empty")
		}
		return cfg.DatabaseURL, nil
	case config.DialectSQLite:
		if cfg.DatabaseURL == "" {
			return "", fmt.Errorf("DATABASE_URL is empty")
		}
		return SQLiteDSN(cfg.DatabaseURL), nil
	}
	return "", fmt.Errorf("unknown warehouse dialect %q", cfg.Dialect)
}

// SQLiteDSN enables WAL and a busy timeout unless the path already carries a query.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Dialect returns the SQL dialect of the open warehouse.
func (c *DatabaseClient) Dialect() Dialect { return c.dialect }

// DB exposes the pool for stateless callers such as search.
func (c *DatabaseClient) DB() Conn { return c.db }

// Acquire checks out a dedicated session for one pipeline run. The caller must Close it.
func (c *DatabaseClient) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire %s session: %w", c.dialect.Name(), err)
	}
	return conn, nil
}

// Ping returns the server version reported by the warehouse.
func (c *DatabaseClient) Ping(ctx context.Context) (string, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, c.dialect.VersionQuery()).Scan(&version); err != nil {
		return "", fmt.Errorf("%s version query: %w", c.dialect.Name(), err)
	}
	return version, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
