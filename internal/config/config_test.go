package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "triage.db"},
		Oracle:   OracleConfig{APIKey: "sk-test", Model: "gpt-4o"},
	}
}

func TestConfigValidation(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	invalid := validConfig()
	invalid.Server.Port = ""
	assert.Error(t, invalid.Validate())

	unknownDriver := validConfig()
	unknownDriver.Database.Driver = "oracle"
	assert.Error(t, unknownDriver.Validate())

	mysqlMissing := validConfig()
	mysqlMissing.Database = DatabaseConfig{Driver: "mysql", Host: "localhost"}
	assert.Error(t, mysqlMissing.Validate())
}

func TestConfigValidationMissingCredential(t *testing.T) {
	cfg := validConfig()
	cfg.Oracle.APIKey = ""

	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestConfigValidationScheduler(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler = SchedulerConfig{Enabled: true, IntervalMinutes: 0}
	assert.Error(t, cfg.Validate())

	cfg.Scheduler.IntervalMinutes = 10
	assert.NoError(t, cfg.Validate())

	cfg.Scheduler = SchedulerConfig{Enabled: false}
	assert.NoError(t, cfg.Validate())
}

func TestMailboxValidation(t *testing.T) {
	assert.NoError(t, (&MailboxConfig{}).Validate())
	assert.Error(t, (&MailboxConfig{Source: "imap"}).Validate())
	assert.NoError(t, (&MailboxConfig{Source: "imap", IMAPUser: "u", IMAPPassword: "p"}).Validate())
	assert.Error(t, (&MailboxConfig{Source: "gmail", ClientID: "id"}).Validate())
	assert.Error(t, (&MailboxConfig{Source: "pop3"}).Validate())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=UTC"
	assert.Equal(t, expected, cfg.GetDSN())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("DB_PATH", "/tmp/inbox.db")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Oracle.APIKey)
	assert.Equal(t, "/tmp/inbox.db", cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "gpt-4o", cfg.Oracle.Model)
	assert.NoError(t, cfg.Validate())
}
