package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox-triage/internal/config"
	"inbox-triage/internal/model"
)

func TestInitSQLiteCreatesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.db")

	conn, err := Init(config.DatabaseConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)

	assert.True(t, conn.Migrator().HasTable("messages"))
	assert.True(t, conn.Migrator().HasTable("triaged_messages"))
	assert.True(t, conn.Migrator().HasColumn("triaged_messages", "urgency_level"))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Close())
}

func TestInitRejectsUnknownDriver(t *testing.T) {
	_, err := Init(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMigrateNormalizesLegacyTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.db")
	conn, err := Init(config.DatabaseConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)

	require.NoError(t, conn.Create(&model.MessageRow{MessageID: "legacy", Subject: "s", Body: "b", Datetime: "2024-06-03T07:00:00"}).Error)
	require.NoError(t, conn.Create(&model.TriageRow{MessageID: "legacy", TriageCategory: "CLINICAL", UrgencyLevel: 3, Confidence: 0.5, ProcessedAt: "2024-06-03T08:00:00"}).Error)
	require.NoError(t, conn.Create(&model.MessageRow{MessageID: "junk", Subject: "s", Body: "b", Datetime: "not a time at all"}).Error)

	require.NoError(t, Migrate(conn))

	var msg model.MessageRow
	require.NoError(t, conn.Where("message_id = ?", "legacy").First(&msg).Error)
	assert.Equal(t, model.FormatTimestamp(time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)), msg.Datetime)

	var tr model.TriageRow
	require.NoError(t, conn.Where("message_id = ?", "legacy").First(&tr).Error)
	assert.Equal(t, model.FormatTimestamp(time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)), tr.ProcessedAt)

	var junk model.MessageRow
	require.NoError(t, conn.Where("message_id = ?", "junk").First(&junk).Error)
	assert.Equal(t, "not a time at all", junk.Datetime)

	// a row stamped exactly at the lower bound is now inside the range
	var n int64
	require.NoError(t, conn.Model(&model.MessageRow{}).
		Where("datetime >= ? AND datetime <= ?",
			model.FormatTimestamp(time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)),
			model.FormatTimestamp(time.Date(2024, 6, 3, 23, 59, 59, 0, time.UTC))).
		Count(&n).Error)
	assert.Equal(t, int64(1), n)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Close())
}
