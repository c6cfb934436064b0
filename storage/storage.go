package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrUnknownDriver = errors.New("unknown database driver")
	// ErrStorage wraps every failure coming from the database itself.
	ErrStorage = errors.New("storage unavailable")
)

type Storage struct {
	db     *gorm.DB
	driver string
}

// New opens the database behind driver and migrates the schema.
// For sqlite dsn is a file path.
func New(driver, dsn string) (*Storage, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		slog.Error("storage: Failed to connect to database", "error", err, "driver", driver)
		return nil, fmt.Errorf("%w: failed to connect to database: %w", ErrStorage, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to get connection pool: %w", ErrStorage, err)
		}
		// sqlite allows a single writer; queue on the pool instead of failing with SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Storage{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) migrate() error {
	err := s.db.AutoMigrate(&GuildOpt{}, &UserOpt{}, &Shout{})
	if err != nil {
		slog.Error("storage: Failed to migrate database", "error", err)
		return fmt.Errorf("%w: failed to migrate database: %w", ErrStorage, err)
	}

	return nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: failed to get connection pool: %w", ErrStorage, err)
	}
	return sqlDB.Close()
}

// snapshot returns options for read transactions that must see one consistent state.
// sqlite transactions are already serializable.
func (s *Storage) snapshot() *sql.TxOptions {
	if s.driver == DriverPostgres {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}
