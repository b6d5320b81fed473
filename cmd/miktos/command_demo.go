package main

import (
	"fmt"
	"io"

	"github.com/picatz/miktos"
	"github.com/spf13/cobra"
)

var demoCommand = &cobra.Command{
	Use:   "demo",
	Short: "Walk through the API: create a project, generate, list, and stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPIKey(); err != nil {
			return err
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		project, err := client.CreateProject(ctx, &miktos.CreateProjectRequest{
			Name:        "Go API Example",
			Description: miktos.String("Testing the Miktos API with Go"),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created project: %s with ID: %s\n", project.Name, project.ID)

		gen, err := client.GenerateText(ctx, &miktos.GenerateTextRequest{
			ProjectID: project.ID,
			Model:     miktos.ModelGPT4o,
			Messages: []miktos.Message{
				{Role: miktos.ChatRoleUser, Content: "Explain quantum computing in simple terms."},
			},
			Temperature: miktos.Float64(miktos.DefaultTemperature),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\n"+styleHeading.Render("Generated response:"))
		fmt.Fprintln(out, gen.Content)

		projects, err := client.ListProjects(ctx, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nTotal projects: %d\n", len(projects))

		fmt.Fprintln(out, "\n"+styleHeading.Render("Streaming example:"))
		err = client.StreamText(ctx, &miktos.GenerateTextRequest{
			ProjectID: project.ID,
			Model:     miktos.ModelClaude3Opus,
			Messages: []miktos.Message{
				{Role: miktos.ChatRoleUser, Content: "Write a short poem about AI."},
			},
		}, func(chunk string) error {
			_, err := io.WriteString(out, chunk)
			return err
		})
		fmt.Fprintln(out)
		if err != nil {
			fmt.Fprintln(out, styleError.Render("Streaming failed: "+err.Error()))
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCommand)
}
