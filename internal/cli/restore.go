package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"db-local-sync/internal/confirm"
	"db-local-sync/internal/logger"
	"db-local-sync/internal/notify"
	"db-local-sync/internal/snapshot"
	"db-local-sync/internal/sync"
)

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <snapshot.json>",
		Short: "Replace the local database with a JSON snapshot",
		Long: `Load a snapshot written by "dump --format json" into the local database.
The local database is backed up first, exactly as during a sync.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, rootOpts, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "restore without asking")

	return cmd
}

func runRestore(cmd *cobra.Command, rootOpts *RootOptions, path string, yes bool) error {
	snap, err := readSnapshot(path)
	if err != nil {
		return err
	}

	cfg, err := rootOpts.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	local := a.local()
	backupName := local.Database + cfg.Sync.BackupSuffix
	n := a.notifier(cmd.OutOrStdout())

	var gate confirm.Gate = confirm.NewTerminal(cfg.Confirm.GetTimeout())
	if yes {
		gate = confirm.Auto{}
	}
	decision := <-gate.Ask(ctx, confirm.Prompt{
		ID:        uuid.NewString(),
		Title:     fmt.Sprintf("Restore %s from %s?", local.Database, path),
		Message:   fmt.Sprintf("%s will be backed up to %s and replaced with %s.", local, backupName, snap),
		Action:    "Restore",
		CreatedAt: time.Now(),
	})
	if decision != confirm.Approved {
		fmt.Fprintln(cmd.OutOrStdout(), "Restore cancelled")
		return nil
	}

	if !cfg.Sync.StrictMode {
		if err := a.mutator.RelaxValidation(ctx, local); err != nil {
			return fmt.Errorf("%w: %w", sync.ErrValidationRelaxation, err)
		}
	}

	step, err := sync.BackupAndReplace(ctx, a.mutator, local, backupName, snap, nil)
	if err != nil {
		if step == sync.StepBackup {
			return fmt.Errorf("backup failed, local database untouched: %w", err)
		}
		pn := sync.PartialReplaceNotification(local.Database, backupName, err)
		pn.Time = time.Now()
		n.Notify(ctx, pn)
		return err
	}

	n.Notify(ctx, notify.Notification{
		Level:   notify.Success,
		Event:   "restore_ok",
		Title:   "DB-Local-Sync",
		Message: fmt.Sprintf("%s restored from %s", local.Database, path),
		Time:    time.Now(),
	})
	return nil
}

func readSnapshot(path string) (*snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap, err := snapshot.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return snap, nil
}
