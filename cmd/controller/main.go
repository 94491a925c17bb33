package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/config"
	"github.com/danielpatrickdp/glyph-controller/internal/controller"
	"github.com/danielpatrickdp/glyph-controller/internal/feed"
	"github.com/danielpatrickdp/glyph-controller/internal/glyph"
	"github.com/danielpatrickdp/glyph-controller/internal/logging"
	"github.com/danielpatrickdp/glyph-controller/internal/state"
	"github.com/danielpatrickdp/glyph-controller/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "controller",
		Short:         "Run the glyph decision controller against the simulated glyph system",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (defaults apply when empty)")

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return root
}

// #endregion main

// #region run

func run(ctx context.Context, cfg config.Config) error {
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	engine := glyph.NewEngine(cfg.Simulation, logger, time.Now)
	registry := action.NewRegistry()
	if err := engine.Register(registry); err != nil {
		return fmt.Errorf("register handlers: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(promReg)

	broker := feed.NewBroker(logger)
	ctrl, err := controller.New(cfg, engine, registry,
		controller.WithStore(store),
		controller.WithBroker(broker),
		controller.WithMetrics(metrics),
		controller.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.FeedAddr)
	if err != nil {
		return fmt.Errorf("listen feed %s: %w", cfg.FeedAddr, err)
	}
	feedSrv := feed.NewServer(broker, cfg.FeedBuffer, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ctrl.Status()); err != nil {
			logger.Warn("encode status failed", zap.Error(err))
		}
	})
	httpSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}

	logger.Info("glyph controller ready",
		zap.String("db", cfg.DBPath),
		zap.String("feed_addr", cfg.FeedAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Int("glyphs", len(engine.Glyphs())),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctrl.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return feedSrv.Serve(lis) })
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Closing the broker ends open feed streams so GracefulStop can return.
		broker.Close()
		feedSrv.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("glyph controller shut down")
	return nil
}

// #endregion run
