package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"cmsops/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB bundles the two views the tools use on one connection pool: gorm for
// writes and metadata rows, sqlx for catalog queries.
type DB struct {
	Gorm *gorm.DB
	X    *sqlx.DB
}

// Open connects with the pgx stdlib driver and shares the pool between
// gorm and sqlx.
func Open(dsn string, log *zap.Logger, level gormlogger.LogLevel) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return wrap(sqlDB, "pgx", log, level)
}

// Wrap builds a DB over an existing connection (tests pass sqlmock here).
func Wrap(sqlDB *sql.DB, log *zap.Logger) (*DB, error) {
	return wrap(sqlDB, "postgres", log, gormlogger.Silent)
}

func wrap(sqlDB *sql.DB, driverName string, log *zap.Logger, level gormlogger.LogLevel) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.NewGormLogger(log, level),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &DB{Gorm: gdb, X: sqlx.NewDb(sqlDB, driverName)}, nil
}

func (d *DB) Close() error {
	return d.X.Close()
}

// SQL exposes the shared pool for goose.
func (d *DB) SQL() *sql.DB {
	return d.X.DB
}

var identRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidIdent allows letters, digits and underscore, starting with a letter
// or underscore. Everything interpolated into DDL goes through this first.
func ValidIdent(name string) bool {
	return len(name) <= 63 && identRE.MatchString(name)
}

// QuoteIdent double-quotes an identifier for use in DDL.
func QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}
