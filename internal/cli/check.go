package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"db-local-sync/internal/confirm"
	"db-local-sync/internal/logger"
	"db-local-sync/internal/sync"
)

// NewCheckCommand creates the check command: one cycle, then exit.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare once and sync if the remote changed",
		Long: `Run a single cycle. If the remote database differs from the local one you
are asked to confirm in the terminal, unless --yes is given.

Exits non-zero if the cycle failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rootOpts, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "approve the sync without asking")

	return cmd
}

func runCheck(cmd *cobra.Command, rootOpts *RootOptions, yes bool) error {
	cfg, err := rootOpts.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var gate confirm.Gate = confirm.NewTerminal(cfg.Confirm.GetTimeout())
	if yes {
		gate = confirm.Auto{}
	}
	orch, err := a.orchestrator(gate, a.notifier(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer orch.Stop()

	// A zero interval runs the eager cycle only.
	if err := orch.StartWatching(ctx, 0, cfg.Sync.StrictMode); err != nil {
		return err
	}
	orch.Wait()

	st := orch.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.local(), st.LastOutcome)

	switch st.LastOutcome {
	case sync.OutcomeFailed, sync.OutcomePartialReplace:
		return fmt.Errorf("sync %s: %s", st.LastOutcome, st.LastError)
	}
	return nil
}
