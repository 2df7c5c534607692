package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"inbox-triage/internal/app"
	"inbox-triage/internal/fetcher"
)

func main() {
	os.Exit(run())
}

func run() int {
	file := flag.String("file", "", "CSV batch to ingest")
	source := flag.String("source", "", "mailbox to import from: imap or gmail")
	since := flag.Duration("since", 24*time.Hour, "mailbox import window")
	runTriage := flag.Bool("triage", false, "triage all pending messages after importing")
	exportPath := flag.String("export", "", "write imported mailbox messages to this CSV file")
	flag.Parse()

	if *file == "" && *source == "" && !*runTriage {
		flag.Usage()
		return 2
	}

	app.ConfigureLogging("info")
	cfg, err := app.LoadConfig()
	if err != nil {
		logrus.Errorf("%v", err)
		return 1
	}
	app.ConfigureLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.NewRuntime(cfg, prometheus.NewRegistry())
	if err != nil {
		logrus.Errorf("%v", err)
		return 1
	}
	defer rt.Close()

	var src fetcher.Source
	if *source != "" {
		cfg.Mailbox.Source = *source
		src, err = fetcher.New(ctx, cfg.Mailbox)
		if err != nil {
			logrus.Errorf("failed to create mailbox source: %v", err)
			return 1
		}
		defer src.Close()
	}

	summary, err := app.Import(ctx, rt.Triage, src, app.ImportOptions{
		File:       *file,
		Since:      *since,
		Triage:     *runTriage,
		ExportPath: *exportPath,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(summary)

	if err != nil {
		logrus.Errorf("import failed: %v", err)
		return 1
	}
	return 0
}
