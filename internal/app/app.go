package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"inbox-triage/internal/config"
	"inbox-triage/internal/db"
	"inbox-triage/internal/fetcher"
	"inbox-triage/internal/handler"
	"inbox-triage/internal/loader"
	"inbox-triage/internal/metrics"
	"inbox-triage/internal/repository"
	"inbox-triage/internal/router"
	"inbox-triage/internal/scheduler"
	"inbox-triage/internal/service"
	"inbox-triage/internal/triage"
)

// Runtime holds the components shared by the server and the import CLI.
type Runtime struct {
	Config  *config.Config
	DB      *gorm.DB
	Metrics *metrics.Metrics
	Triage  *service.TriageService
}

// ConfigureLogging sets the JSON formatter and the configured level.
func ConfigureLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// LoadConfig loads and validates configuration. A missing oracle credential
// is reported as config.ErrMissingCredential.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// NewRuntime opens the store and wires the triage service.
func NewRuntime(cfg *config.Config, reg prometheus.Registerer) (*Runtime, error) {
	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics(reg)

	oracle := triage.NewOpenAIOracle(triage.OpenAIConfig{
		APIKey:      cfg.Oracle.APIKey,
		BaseURL:     cfg.Oracle.BaseURL,
		Model:       cfg.Oracle.Model,
		Temperature: cfg.Oracle.Temperature,
	})
	classifier := triage.NewClassifier(oracle,
		triage.WithTimeout(cfg.Oracle.Timeout),
		triage.WithMetrics(m),
	)

	svc := service.New(repository.New(dbConn), classifier, loader.New(), m)

	logrus.WithFields(logrus.Fields{
		"model":    oracle.Model(),
		"base_url": cfg.Oracle.BaseURL,
	}).Info("Classification oracle configured")

	return &Runtime{Config: cfg, DB: dbConn, Metrics: m, Triage: svc}, nil
}

// Close releases the database connection.
func (r *Runtime) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Run initializes and starts the application
func Run() error {
	ConfigureLogging("info")
	logrus.Info("Starting Inbox Triage Service")

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	ConfigureLogging(cfg.Log.Level)

	rt, err := NewRuntime(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer rt.Close()

	var src fetcher.Source
	if cfg.Mailbox.Source != "" {
		src, err = fetcher.New(context.Background(), cfg.Mailbox)
		if err != nil {
			return fmt.Errorf("failed to create mailbox source: %w", err)
		}
		defer src.Close()
		logrus.Infof("Using %s mailbox import", cfg.Mailbox.Source)
	}

	sched := scheduler.New(&cfg.Scheduler, rt.Triage, src)

	h := handler.NewHandlers(rt.Triage, sched, cfg.Server.MaxUploadSize)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
