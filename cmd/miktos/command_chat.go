package main

import (
	"fmt"

	"github.com/picatz/miktos/internal/chat"
	"github.com/picatz/miktos/internal/history"
	"github.com/spf13/cobra"
)

var chatCommand = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a model in the context of a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err := requireAPIKey(); err != nil {
			return err
		}

		projectID, _ := cmd.Flags().GetString("project")
		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = cfg.Model
		}

		var h *history.Log
		if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
			temporary, _ := cmd.Flags().GetBool("temporary")

			h, err = history.Open(cfg.HistoryPath, temporary)
			if err != nil {
				return err
			}
			defer closeHistory(cmd.Context(), h, &err)
		}

		chatSession, restore, err := chat.NewSession(cmd.Context(), client, projectID, model, cmd.InOrStdin(), cmd.OutOrStdout(), h)
		if err != nil {
			return fmt.Errorf("failed to create chat session: %w", err)
		}
		defer restore()

		chatSession.Stream, _ = cmd.Flags().GetBool("stream")

		chatSession.Run(cmd.Context())

		return nil
	},
}

func init() {
	chatCommand.Flags().StringP("project", "p", "", "Project ID")
	chatCommand.Flags().StringP("model", "m", "", "Model identifier (defaults to MIKTOS_MODEL)")
	chatCommand.Flags().BoolP("stream", "s", true, "Print replies as they are generated")
	chatCommand.Flags().BoolP("temporary", "t", false, "Use a temporary in-memory history")
	chatCommand.Flags().Bool("no-history", false, "Do not record the conversation")
	chatCommand.MarkFlagRequired("project")

	rootCmd.AddCommand(chatCommand)
}
