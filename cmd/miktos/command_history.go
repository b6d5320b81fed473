package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/picatz/miktos/internal/history"
	"github.com/spf13/cobra"
)

var historyCommand = &cobra.Command{
	Use:   "history",
	Short: "Inspect the local generation history",
}

var historyListCommand = &cobra.Command{
	Use:   "list",
	Short: "List recorded generations, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return fmt.Errorf("limit must be positive: %d", limit)
		}

		h, err := history.Open(cfg.HistoryPath, false)
		if err != nil {
			return err
		}
		defer closeHistory(cmd.Context(), h, &err)

		records, next, err := h.List(cmd.Context(), limit, nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for id, rec := range records {
			fmt.Fprintf(out, "%s %s\n", styleID.Render(id), styleDetail.Render(fmt.Sprintf("%s %s %s", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), rec.ProjectID, rec.Model)))
			fmt.Fprintf(out, "  > %s\n", rec.Prompt())
			fmt.Fprintf(out, "  %s\n\n", rec.Response)
		}
		if next != nil {
			fmt.Fprintln(out, styleDetail.Render("More records are available, raise --limit to see them."))
		}
		return nil
	},
}

var historyClearCommand = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded generation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		h, err := history.Open(cfg.HistoryPath, false)
		if err != nil {
			return err
		}
		defer closeHistory(cmd.Context(), h, &err)

		n, err := h.Clear(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s records.\n", styleCount.Render(fmt.Sprint(n)))
		return nil
	},
}

// closeHistory closes h and joins any close error into *errp.
func closeHistory(ctx context.Context, h *history.Log, errp *error) {
	if err := h.Close(ctx); err != nil {
		*errp = errors.Join(*errp, fmt.Errorf("failed to close history: %w", err))
	}
}

func init() {
	historyListCommand.Flags().IntP("limit", "n", 10, "Maximum number of records to show")

	historyCommand.AddCommand(
		historyListCommand,
		historyClearCommand,
	)

	rootCmd.AddCommand(historyCommand)
}
