package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focused-crawler/internal/config"
	"focused-crawler/internal/crawler"
	"focused-crawler/internal/eventlog"
	"focused-crawler/internal/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the crawl command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Focused web crawler",
		Long: `crawl fetches pages breadth-first in waves, starting from the seed URLs.
Links are scored against the configured keywords and by in-link count;
a link whose score exceeds the relevance cutoff when its wave opens is dropped.

Seeds come from the config file, --seed flags and positional arguments.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCrawl,
	}

	cmd.Flags().StringP("config", "c", "", "YAML configuration file")
	cmd.Flags().StringSlice("seed", nil, "seed URL (repeatable)")
	cmd.Flags().IntP("page-cap", "n", 0, "stop after N pages (overrides config)")
	cmd.Flags().String("log-level", "", "logrus level (overrides config)")
	cmd.Flags().String("metrics-addr", "", "prometheus listen address, \"off\" disables")

	cmd.AddCommand(NewLinksCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	seeds, _ := cmd.Flags().GetStringSlice("seed")
	cfg.Seeds = append(cfg.Seeds, seeds...)
	cfg.Seeds = append(cfg.Seeds, args...)
	if cmd.Flags().Changed("page-cap") {
		cfg.PageCap, _ = cmd.Flags().GetInt("page-cap")
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	if cfg.MetricsAddr == "off" {
		cfg.MetricsAddr = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func openSinks(ctx context.Context, cfg *config.Config, runID string, log logrus.FieldLogger) (storage.Sink, error) {
	files, err := storage.OpenFiles(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	sinks := []storage.Sink{files}

	if cfg.SQLitePath != "" {
		db, err := storage.OpenSQLite(ctx, cfg.SQLitePath, runID)
		if err != nil {
			return nil, errors.Join(err, storage.Tee(sinks...).Close())
		}
		sinks = append(sinks, db)
		log.WithField("path", cfg.SQLitePath).Info("sqlite sink enabled")
	}
	if cfg.MongoURI != "" {
		db, err := storage.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, runID, log)
		if err != nil {
			return nil, errors.Join(err, storage.Tee(sinks...).Close())
		}
		sinks = append(sinks, db)
		log.WithField("database", cfg.MongoDatabase).Info("mongo sink enabled")
	}
	return storage.Tee(sinks...), nil
}

func serveMetrics(addr string, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server")
		}
	}()
	return srv
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)
	runID := uuid.NewString()
	log.WithFields(logrus.Fields{
		"run":   runID,
		"seeds": len(cfg.Seeds),
		"cap":   cfg.PageCap,
	}).Info("starting crawl")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := openSinks(ctx, cfg, runID, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.WithError(err).Error("close sinks")
		}
	}()

	events, err := eventlog.Open(cfg.LogDir, log)
	if err != nil {
		return err
	}
	defer events.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, log)
		defer srv.Close()
	}

	c := crawler.New(crawler.FromConfig(cfg), crawler.Deps{
		Sink:   sink,
		Events: events,
		Log:    log,
	})
	if c.Seed(cfg.Seeds) == 0 {
		return config.ErrNoSeeds
	}

	sum, err := c.Run(ctx)

	fmt.Println("------- FINAL STATS -------")
	fmt.Printf("Crawled    : %d links\n", sum.Crawled)
	fmt.Printf("Discovered : %d links\n", sum.Discovered)
	fmt.Printf("Pages      : %d (%s)\n", sum.Pages, sum.Reason)
	fmt.Printf("Waves      : %d\n", sum.LastWave+1)
	fmt.Printf("Admitted   : %d (pruned %d)\n", sum.Admitted, sum.Pruned)
	fmt.Printf("Run        : %s\n", runID)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
