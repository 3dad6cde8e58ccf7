package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"db-local-sync/internal/api"
	"db-local-sync/internal/logger"
	"db-local-sync/internal/sync"
)

type watchOptions struct {
	confirm  string
	interval time.Duration
}

// NewWatchCommand creates the watch command, the long-running mode.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check the remote database on a timer and sync after confirmation",
		Long: `Run one check immediately and then one per interval. When the remote
content differs from the local copy you are asked to confirm; the local
database is then backed up and replaced.

With server.enabled the HTTP API is served alongside, and confirm.mode=api
moves confirmation there.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.confirm, "confirm", "", "override confirm.mode (terminal|api|auto)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "override sync.interval_minutes")

	return cmd
}

func runWatch(cmd *cobra.Command, rootOpts *RootOptions, opts *watchOptions) error {
	cfg, err := rootOpts.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	mode := cfg.Confirm.Mode
	if opts.confirm != "" {
		mode = opts.confirm
	}
	if mode == "api" && !cfg.Server.Enabled {
		return fmt.Errorf("confirmation over the API requires server.enabled")
	}
	interval := cfg.Sync.PollInterval()
	if opts.interval > 0 {
		interval = opts.interval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	gate, manual, err := newGate(mode, cfg.Confirm)
	if err != nil {
		return err
	}
	orch, err := a.orchestrator(gate, a.notifier(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer orch.Stop()

	var serverErr <-chan error
	if cfg.Server.Enabled {
		srv := api.NewServer(cfg.Server, api.NewHandler(orch, a.apiOptions(manual)...))
		serverErr = srv.Start()
		defer func() {
			if err := srv.Shutdown(); err != nil {
				logger.Log.Warn("Server shutdown failed", zap.Error(err))
			}
		}()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching for changes of %s in %s\n", a.remote().Database, a.remote().Host)
	if err := orch.StartWatching(ctx, interval, cfg.Sync.StrictMode); err != nil {
		return err
	}

	if cfg.Sync.Realtime {
		if l := startChangeListener(ctx, cfg.Sync.ServerID, a, orch); l != nil {
			defer l.Stop()
		}
	}

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	return nil
}

// startChangeListener is best effort: without binlog access the timer still
// drives every cycle.
func startChangeListener(ctx context.Context, serverID uint32, a *app, orch *sync.Orchestrator) *sync.ChangeListener {
	l, err := sync.NewChangeListener(a.cfg.Databases.Remote, serverID, func() {
		orch.RunCycle(ctx)
	})
	if err != nil {
		logger.Log.Warn("Realtime change detection unavailable", zap.Error(err))
		return nil
	}
	if err := l.Start(); err != nil {
		logger.Log.Warn("Realtime change detection unavailable", zap.Error(err))
		l.Stop()
		return nil
	}
	return l
}
