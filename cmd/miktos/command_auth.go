package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var authCommand = &cobra.Command{
	Use:   "auth",
	Short: "Exchange an email and password for an access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		token, err := client.Authenticate(cmd.Context(), email, password)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styleHeading.Render("Authenticated."))
		if token.ExpiresIn > 0 {
			fmt.Fprintln(out, styleDetail.Render(fmt.Sprintf("Token expires in %ds.", token.ExpiresIn)))
		}
		fmt.Fprintf(out, "\nexport MIKTOS_API_KEY=%s\n", token.AccessToken)
		return nil
	},
}

func init() {
	authCommand.Flags().String("email", "", "Account email")
	authCommand.Flags().String("password", "", "Account password")
	authCommand.MarkFlagRequired("email")
	authCommand.MarkFlagRequired("password")

	rootCmd.AddCommand(authCommand)
}
