package main

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/picatz/miktos"
	"github.com/spf13/cobra"
)

var projectsCommand = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
}

var projectsListCommand = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPIKey(); err != nil {
			return err
		}

		skip, _ := cmd.Flags().GetInt("skip")
		limit, _ := cmd.Flags().GetInt("limit")

		projects, err := client.ListProjects(cmd.Context(), &miktos.ListProjectsRequest{Skip: skip, Limit: limit})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, p := range projects {
			fmt.Fprintf(out, "%s %s", styleID.Render(p.ID), p.Name)
			if p.Description != "" {
				fmt.Fprint(out, " "+styleDetail.Render(p.Description))
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "\nTotal projects: %s\n", styleCount.Render(fmt.Sprint(len(projects))))
		return nil
	},
}

var projectsCreateCommand = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPIKey(); err != nil {
			return err
		}

		req := &miktos.CreateProjectRequest{Name: args[0]}

		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			req.Description = miktos.String(v)
		}
		if cmd.Flags().Changed("context-notes") {
			v, _ := cmd.Flags().GetString("context-notes")
			req.ContextNotes = miktos.String(v)
		}
		if cmd.Flags().Changed("repository-url") {
			v, _ := cmd.Flags().GetString("repository-url")
			req.RepositoryURL = miktos.String(v)
		} else if dir, _ := cmd.Flags().GetString("from-git"); dir != "" {
			url, err := originURL(dir)
			if err != nil {
				return err
			}
			req.RepositoryURL = miktos.String(url)
		}

		project, err := client.CreateProject(cmd.Context(), req)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created project: %s with ID: %s\n", project.Name, styleID.Render(project.ID))
		return nil
	},
}

// errNoOriginURL is returned when the origin remote has no URL configured.
var errNoOriginURL = errors.New("origin remote has no URL")

// originURL returns the first URL of the origin remote of the git
// repository containing dir.
func originURL(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("failed to open git repository %q: %w", dir, err)
	}

	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return "", fmt.Errorf("failed to read %s remote: %w", git.DefaultRemoteName, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", errNoOriginURL
	}
	return urls[0], nil
}

func init() {
	projectsListCommand.Flags().Int("skip", 0, "Number of projects to skip")
	projectsListCommand.Flags().Int("limit", miktos.DefaultListLimit, "Maximum number of projects to list")

	projectsCreateCommand.Flags().String("description", "", "Project description")
	projectsCreateCommand.Flags().String("context-notes", "", "Notes included as context for generations")
	projectsCreateCommand.Flags().String("repository-url", "", "Repository URL")
	projectsCreateCommand.Flags().String("from-git", "", "Use the origin remote of the git repository at this path as the repository URL")

	projectsCommand.AddCommand(
		projectsListCommand,
		projectsCreateCommand,
	)

	rootCmd.AddCommand(projectsCommand)
}
