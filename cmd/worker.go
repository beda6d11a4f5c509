// cmd/worker.go
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hkcm91/StickerNestV3-sub013/internal/assets"
	"github.com/hkcm91/StickerNestV3-sub013/internal/config"
	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
	"github.com/hkcm91/StickerNestV3-sub013/internal/generation"
	"github.com/hkcm91/StickerNestV3-sub013/internal/jobs"
	"github.com/hkcm91/StickerNestV3-sub013/internal/logging"
	"github.com/hkcm91/StickerNestV3-sub013/internal/metrics"
	"github.com/hkcm91/StickerNestV3-sub013/internal/queue"
)

var metricsAddr string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job worker for all generation queues",
	Long: `Starts one processor per generation queue (image, video, widget, LoRA)
and consumes jobs until interrupted. Concurrency, attempt limits, and
timeouts come from the config file; see internal/config for defaults.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if debugMode {
		cfg.Debug = true
	}

	log, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport := queue.New(queue.Config{
		ConsumerGroup:      cfg.ConsumerGroup,
		BlockMs:            cfg.BlockMs,
		MaxAttempts:        cfg.MaxAttemptsByQueue(),
		DefaultMaxAttempts: 3,
	}, log)
	if err := transport.Connect(ctx, cfg.RedisURL, cfg.RedisPassword); err != nil {
		return err
	}
	defer transport.Close()

	if err := transport.EnsureGroups(ctx, jobs.Queues()); err != nil {
		return err
	}
	sweeper := transport.StartRetrySweeper()
	defer sweeper.Stop()

	var store assets.Store
	if cfg.PostgresDSN != "" {
		pg, err := assets.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
	} else {
		log.Warn("no postgres_dsn configured, asset records go to the in-memory store")
		store = assets.NewMemoryStore()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	go serveMetrics(log)

	reg := engine.NewRegistry(log)
	err = jobs.RegisterAll(reg, jobs.Deps{
		Transport:  transport,
		Generation: generation.NewClient(cfg.GenerationURL),
		Assets:     store,
		Logger:     log,
		Metrics:    m,
	}, func(q string) engine.Options {
		s := cfg.QueueSettingsFor(q)
		return engine.Options{Concurrency: s.Concurrency, Timeout: s.Timeout()}
	})
	if err != nil {
		return err
	}

	if err := reg.StartAll(ctx); err != nil {
		return err
	}

	color.Green("✅ Worker started (consumer %s)", transport.WorkerID())
	for _, q := range reg.Queues() {
		s := cfg.QueueSettingsFor(q)
		fmt.Printf("   - %s (concurrency %d, max attempts %d)\n", q, s.Concurrency, s.MaxAttempts)
	}

	<-ctx.Done()
	log.Info("shutting down, draining in-flight jobs")
	reg.Stop()
	color.Yellow("🛑 Worker shutdown complete")
	return nil
}

func serveMetrics(log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(metricsAddr, mux); err != nil {
		log.Warn("metrics listener stopped", zap.Error(err))
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9173", "Listen address for the Prometheus /metrics endpoint")
}
