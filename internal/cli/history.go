package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"db-local-sync/internal/logger"
	"db-local-sync/internal/store"
)

type historyOptions struct {
	limit int
	json  bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sync cycles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "number of cycles to show")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print JSON instead of a table")

	return cmd
}

func runHistory(cmd *cobra.Command, rootOpts *RootOptions, opts *historyOptions) error {
	if opts.limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", opts.limit)
	}

	cfg, err := rootOpts.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.Open(cmd.Context(), cfg.StateStorage)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("state_storage.type is none; no history is recorded")
	}
	defer st.Close()

	rows, err := st.GetSyncHistory(cmd.Context(), opts.limit, 0)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	renderHistory(cmd.OutOrStdout(), rows)
	return nil
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func renderHistory(w io.Writer, rows []*store.SyncHistory) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No sync cycles recorded")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "OUTCOME", "TABLES", "ROWS", "BACKUP", "ERROR").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, h := range rows {
		t.Row(
			h.StartedAt.Local().Format("2006-01-02 15:04:05"),
			h.Outcome,
			h.TablesSynced,
			strconv.FormatInt(h.TotalRows, 10),
			h.BackupName.String,
			h.ErrorMessage.String,
		)
	}
	fmt.Fprintln(w, t.Render())
}
