package db

import (
	"fmt"
	"log/slog"
	"time"

	"agri-advance/internal/config"
	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/pool"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the gorm driver for the configured DB_DRIVER.
func Dialector(c *config.Config) (gorm.Dialector, error) {
	switch c.DB.Driver {
	case config.DriverMySQL:
		return mysql.Open(c.MySQLDSN()), nil
	case config.DriverPostgres:
		return postgres.Open(c.PostgresDSN()), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
}

func OpenGorm(c *config.Config) (*gorm.DB, error) {
	dial, err := Dialector(c)
	if err != nil {
		return nil, err
	}
	db, err := OpenGormWithDialector(dial)
	if err != nil {
		return nil, err
	}
	if c.DB.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	slog.Info("gorm: connected", "driver", c.DB.Driver, "host", c.DB.Host)
	return db, nil
}

func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&advance.Advance{},
		&advance.StatusHistory{},
		&advance.Repayment{},
		&pool.LiquidityPool{},
		&pool.Reservation{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
