package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inbox-triage/internal/config"
	"inbox-triage/internal/model"
)

// Init opens the configured database and runs migrations
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.GetDSN())
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	if cfg.Driver == "mysql" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// one writer for the embedded file
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logrus.WithField("driver", dialector.Name()).Info("Database initialized successfully")
	return db, nil
}

// Migrate creates or updates the messages and triaged_messages tables
func Migrate(db *gorm.DB) error {
	logrus.Info("Running database migrations...")
	if err := db.AutoMigrate(&model.MessageRow{}, &model.TriageRow{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	if err := normalizeLegacyTimestamps(db); err != nil {
		return err
	}
	logrus.Info("Database migrations completed")
	return nil
}

// normalizeLegacyTimestamps rewrites zone-less timestamps into the storage
// layout so range filters compare them correctly.
func normalizeLegacyTimestamps(db *gorm.DB) error {
	columns := []struct {
		table  string
		column string
	}{
		{"messages", "datetime"},
		{"triaged_messages", "processed_at"},
	}

	for _, c := range columns {
		var rows []struct {
			MessageID string
			Value     string
		}
		err := db.Table(c.table).
			Select(fmt.Sprintf("message_id, %s AS value", c.column)).
			Where(fmt.Sprintf("LENGTH(%s) = ?", c.column), len(model.LegacyLayout)).
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("failed to scan legacy %s.%s: %w", c.table, c.column, err)
		}

		for _, row := range rows {
			t, err := time.Parse(model.LegacyLayout, row.Value)
			if err != nil {
				logrus.WithField("message_id", row.MessageID).Warnf("Leaving unparseable %s.%s %q", c.table, c.column, row.Value)
				continue
			}
			err = db.Table(c.table).Where("message_id = ?", row.MessageID).
				Update(c.column, model.FormatTimestamp(t)).Error
			if err != nil {
				return fmt.Errorf("failed to normalize %s.%s for %s: %w", c.table, c.column, row.MessageID, err)
			}
		}
		if len(rows) > 0 {
			logrus.Infof("Normalized %d legacy %s.%s values", len(rows), c.table, c.column)
		}
	}
	return nil
}
