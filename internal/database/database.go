package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/fossiltrack/config"
)

// DB is an interface for database operations
type DB interface {
	DB() (*gorm.DB, error)
	ReadDB() (*gorm.DB, error)
	Close() error
}

// GormDatabase implements the DB interface for GORM with a write connection
// and an optional read-only replica
type GormDatabase struct {
	db     *gorm.DB
	readDB *gorm.DB
}

// Connect establishes the database connections and configures pooling
func Connect(cfg config.DatabaseConfig) (DB, error) {
	db, err := open(cfg.DSN, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	readDB := db
	if cfg.ReadOnlyDSN != "" && cfg.ReadOnlyDSN != cfg.DSN {
		readDB, err = open(cfg.ReadOnlyDSN, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to read-only database: %w", err)
		}
	}

	return &GormDatabase{db: db, readDB: readDB}, nil
}

func open(dsn string, cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// DB returns the write connection
func (d *GormDatabase) DB() (*gorm.DB, error) {
	return d.db, nil
}

// ReadDB returns the read-only connection, falling back to the write one
func (d *GormDatabase) ReadDB() (*gorm.DB, error) {
	if d.readDB != nil {
		return d.readDB, nil
	}
	return d.db, nil
}

// Close closes both connections
func (d *GormDatabase) Close() error {
	if err := closeGorm(d.db); err != nil {
		return err
	}
	if d.readDB != nil && d.readDB != d.db {
		return closeGorm(d.readDB)
	}
	return nil
}

func closeGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
