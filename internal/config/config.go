package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredential is returned by Validate when no oracle API key is set.
var ErrMissingCredential = errors.New("classification oracle API key is not set (ORACLE_API_KEY or OPENAI_API_KEY)")

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Mailbox   MailboxConfig   `mapstructure:"mailbox"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
}

// DatabaseConfig holds database connection configuration.
// Driver is "sqlite" (embedded file at Path) or "mysql".
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// OracleConfig holds the classification oracle settings
type OracleConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig holds the periodic triage sweep configuration
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
}

// MailboxConfig holds settings for importing message batches from a mailbox.
// Source is "imap" or "gmail"; empty disables mailbox import.
type MailboxConfig struct {
	Source       string `mapstructure:"source"`
	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	IMAPUser     string `mapstructure:"imap_user"`
	IMAPPassword string `mapstructure:"imap_password"`
	Folder       string `mapstructure:"folder"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.max_upload_size", 32<<20)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "triage.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)

	v.SetDefault("oracle.base_url", "https://api.openai.com/v1")
	v.SetDefault("oracle.model", "gpt-4o")
	v.SetDefault("oracle.temperature", 0.1)
	v.SetDefault("oracle.timeout", "30s")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval_minutes", 5)

	v.SetDefault("mailbox.imap_host", "imap.gmail.com")
	v.SetDefault("mailbox.imap_port", 993)
	v.SetDefault("mailbox.folder", "INBOX")

	v.SetDefault("log.level", "info")
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.path", "DB_PATH")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Oracle
	v.BindEnv("oracle.api_key", "ORACLE_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("oracle.base_url", "ORACLE_BASE_URL")
	v.BindEnv("oracle.model", "ORACLE_MODEL")
	v.BindEnv("oracle.timeout", "ORACLE_TIMEOUT")

	// Scheduler
	v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	v.BindEnv("scheduler.interval_minutes", "SCHEDULER_INTERVAL_MINUTES")

	// Mailbox
	v.BindEnv("mailbox.source", "MAILBOX_SOURCE")
	v.BindEnv("mailbox.imap_host", "MAILBOX_IMAP_HOST")
	v.BindEnv("mailbox.imap_port", "MAILBOX_IMAP_PORT")
	v.BindEnv("mailbox.imap_user", "MAILBOX_IMAP_USER")
	v.BindEnv("mailbox.imap_password", "MAILBOX_IMAP_PASSWORD")
	v.BindEnv("mailbox.folder", "MAILBOX_FOLDER")
	v.BindEnv("mailbox.client_id", "GMAIL_CLIENT_ID")
	v.BindEnv("mailbox.client_secret", "GMAIL_CLIENT_SECRET")
	v.BindEnv("mailbox.refresh_token", "GMAIL_REFRESH_TOKEN")
	v.BindEnv("mailbox.user_email", "GMAIL_USER_EMAIL")

	v.BindEnv("log.level", "LOG_LEVEL")
}

// GetDSN returns the MySQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	case "mysql":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Oracle.APIKey == "" {
		return ErrMissingCredential
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("oracle model is required")
	}

	if c.Scheduler.Enabled && c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	if err := c.Mailbox.Validate(); err != nil {
		return err
	}

	return nil
}

// Validate checks the credentials required by the selected mailbox source.
func (m *MailboxConfig) Validate() error {
	switch m.Source {
	case "":
		return nil
	case "imap":
		if m.IMAPUser == "" || m.IMAPPassword == "" {
			return fmt.Errorf("IMAP credentials are required when using the imap mailbox source")
		}
	case "gmail":
		if m.ClientID == "" || m.ClientSecret == "" || m.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when using the gmail mailbox source")
		}
	default:
		return fmt.Errorf("unsupported mailbox source %q", m.Source)
	}
	return nil
}
