package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"db-local-sync/internal/database"
	"db-local-sync/internal/logger"
	"db-local-sync/internal/snapshot"
)

type dumpOptions struct {
	side   string
	format string
	output string
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &dumpOptions{}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write a snapshot of one database as SQL or JSON",
		Long: `Read every table of the local or remote database and write it out.

The sql format is a re-applicable script; the json format can be fed back
through restore.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.side, "side", "remote", "database to dump (local|remote)")
	cmd.Flags().StringVar(&opts.format, "format", "sql", "output format (sql|json)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func (o *dumpOptions) validate() error {
	if o.side != "local" && o.side != "remote" {
		return fmt.Errorf("invalid side %q: must be local or remote", o.side)
	}
	if o.format != "sql" && o.format != "json" {
		return fmt.Errorf("invalid format %q: must be sql or json", o.format)
	}
	return nil
}

func runDump(cmd *cobra.Command, rootOpts *RootOptions, opts *dumpOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	cfg, err := rootOpts.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	pair, err := database.OpenPair(cfg.Databases)
	if err != nil {
		return err
	}
	defer pair.Close()

	id := pair.Remote.Identity
	if opts.side == "local" {
		id = pair.Local.Identity
	}

	snap, err := database.NewSource(pair).Fetch(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", id, err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return writeSnapshot(w, snap, opts.format)
}

func writeSnapshot(w io.Writer, snap *snapshot.Snapshot, format string) error {
	if format == "json" {
		return snapshot.Encode(w, snap)
	}
	return snapshot.WriteSQL(w, snap)
}
