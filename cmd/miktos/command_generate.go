package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/picatz/miktos"
	"github.com/picatz/miktos/internal/chat"
	"github.com/picatz/miktos/internal/history"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var generateCommand = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate text in the context of a project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPIKey(); err != nil {
			return err
		}

		req, err := generateRequest(cmd, strings.Join(args, " "))
		if err != nil {
			return err
		}

		stream, _ := cmd.Flags().GetBool("stream")
		out := cmd.OutOrStdout()

		var response string
		if stream {
			var b strings.Builder
			err = client.StreamText(cmd.Context(), req, func(chunk string) error {
				b.WriteString(chunk)
				_, err := io.WriteString(out, chunk)
				return err
			})
			fmt.Fprintln(out)
			if err != nil {
				return err
			}
			response = b.String()
		} else {
			gen, err := client.GenerateText(cmd.Context(), req)
			if err != nil {
				return err
			}
			response = gen.Content
			printMarkdown(out, response)
		}

		if noHistory, _ := cmd.Flags().GetBool("no-history"); noHistory {
			return nil
		}
		return recordHistory(cmd.Context(), history.Record{
			ProjectID: req.ProjectID,
			Model:     req.Model,
			Messages:  req.Messages,
			Response:  response,
			Streamed:  stream,
		})
	},
}

// generateRequest builds a request from the command's flags and prompt.
// Temperature and max tokens are only sent when set on the command line.
func generateRequest(cmd *cobra.Command, prompt string) (*miktos.GenerateTextRequest, error) {
	projectID, _ := cmd.Flags().GetString("project")
	model, _ := cmd.Flags().GetString("model")
	system, _ := cmd.Flags().GetString("system")

	req := &miktos.GenerateTextRequest{
		ProjectID: projectID,
		Model:     model,
	}
	if req.Model == "" {
		req.Model = cfg.Model
	}

	if system != "" {
		req.Messages = append(req.Messages, miktos.Message{Role: miktos.ChatRoleSystem, Content: system})
	}
	req.Messages = append(req.Messages, miktos.Message{Role: miktos.ChatRoleUser, Content: prompt})

	if cmd.Flags().Changed("temperature") {
		v, _ := cmd.Flags().GetFloat64("temperature")
		if v < 0 {
			return nil, fmt.Errorf("temperature must not be negative: %v", v)
		}
		req.Temperature = miktos.Float64(v)
	}
	if cmd.Flags().Changed("max-tokens") {
		v, _ := cmd.Flags().GetInt("max-tokens")
		if v <= 0 {
			return nil, fmt.Errorf("max tokens must be positive: %d", v)
		}
		req.MaxTokens = miktos.Int(v)
	}

	return req, nil
}

// printMarkdown renders s as markdown when w is a terminal, and writes it
// unchanged otherwise.
func printMarkdown(w io.Writer, s string) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(w, s)
		return
	}

	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		width = 80
	}

	rendered, err := chat.RenderMarkdown(s, width)
	if err != nil {
		log.Warn().Err(err).Msg("failed to render markdown")
		fmt.Fprintln(w, s)
		return
	}
	fmt.Fprint(w, rendered)
}

// recordHistory appends rec to the history log at the configured path.
func recordHistory(ctx context.Context, rec history.Record) (err error) {
	h, err := history.Open(cfg.HistoryPath, false)
	if err != nil {
		return err
	}
	defer closeHistory(ctx, h, &err)

	id, err := h.Append(ctx, rec)
	if err != nil {
		return err
	}
	log.Debug().Str("id", id).Str("path", cfg.HistoryPath).Msg("recorded generation")
	return nil
}

func init() {
	generateCommand.Flags().StringP("project", "p", "", "Project ID")
	generateCommand.Flags().StringP("model", "m", "", "Model identifier (defaults to MIKTOS_MODEL)")
	generateCommand.Flags().Float64("temperature", miktos.DefaultTemperature, "Sampling temperature")
	generateCommand.Flags().Int("max-tokens", miktos.DefaultMaxTokens, "Maximum number of tokens to generate")
	generateCommand.Flags().String("system", "", "System message sent before the prompt")
	generateCommand.Flags().BoolP("stream", "s", false, "Print text as it is generated")
	generateCommand.Flags().Bool("no-history", false, "Do not record the generation in the local history")
	generateCommand.MarkFlagRequired("project")

	rootCmd.AddCommand(generateCommand)
}
