package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check the configured credentials against the CMS",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if cfg.Directus.Token != "" {
			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}
			if _, err := client.ListRoles(cmd.Context()); err != nil {
				return fmt.Errorf("static token rejected: %w", err)
			}
			fmt.Fprintf(out, "static token accepted by %s\n", client.BaseURL())
			return nil
		}
		res, err := client.Login(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "logged in to %s as %s, token valid for %s\n",
			client.BaseURL(), cfg.Admin.Email, time.Duration(res.Expires)*time.Millisecond)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(loginCmd)
}
