package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arloliu/taskchain"
	"github.com/arloliu/taskchain/internal/metrics"
	"github.com/arloliu/taskchain/source"
	"github.com/arloliu/taskchain/types"
)

type serveOptions struct {
	metricsAddr string
	withUsers   bool
	noPublish   bool
}

func serveCmd(flags *globalFlags) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep a task snapshot in sync and publish it to NATS KV",
		Long: `Run the synchronizer until interrupted.

The initial snapshot and every changed snapshot are published to the
configured KV bucket. Prometheus metrics are served on --metrics-addr.

Examples:
  taskchain serve --config taskchain.yaml
  taskchain serve --metrics-addr :9100 --users`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, opts)
		},
	}

	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", ":9090", "address of the /metrics endpoint (empty disables it)")
	cmd.Flags().BoolVar(&opts.withUsers, "users", false, "load users from <subject>.users")
	cmd.Flags().BoolVar(&opts.noPublish, "no-publish", false, "keep the snapshot in memory only")

	return cmd
}

func runServe(ctx context.Context, flags *globalFlags, opts *serveOptions) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	logger, err := flags.logger()
	if err != nil {
		return err
	}

	nc, err := flags.connect()
	if err != nil {
		return err
	}
	defer nc.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mgrOpts := []taskchain.Option{
		taskchain.WithLogger(logger.With("component", "manager")),
		taskchain.WithMetrics(metrics.NewPrometheus(reg, "")),
		taskchain.WithHooks(&taskchain.Hooks{
			OnTasksChanged: func(_ context.Context, changed []types.TaskData, removed []types.TaskID) error {
				logger.Info("tasks changed", "changed", len(changed), "removed", len(removed))
				return nil
			},
		}),
	}
	if opts.withUsers {
		mgrOpts = append(mgrOpts, taskchain.WithUserSource(source.NewNATSUsers(nc, source.UsersSubject(cfg.QuerySubject), 0)))
	}
	if !opts.noPublish {
		js, err := jetstream.New(nc)
		if err != nil {
			return fmt.Errorf("failed to create jetstream context: %w", err)
		}
		mgrOpts = append(mgrOpts, taskchain.WithJetStream(js))
	}

	mgr, err := taskchain.NewManager(&cfg, source.NewNATSQuerier(nc, cfg.QuerySubject, cfg.QueryTimeout), mgrOpts...)
	if err != nil {
		return err
	}

	var srv *http.Server
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv = &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start manager: %w", err)
	}

	snap := mgr.Snapshot()
	logger.Info("synchronizer running",
		"tasks", len(snap.Tasks),
		"users", len(snap.Users),
		"version", snap.Version,
		"metrics_addr", opts.metricsAddr,
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	return mgr.Stop(shutdownCtx)
}
