package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:          "miktos",
	Short:        "Miktos API CLI",
	Long:         "Manage Miktos projects and generate text from the command line.",
	SilenceUsage: true,
}
