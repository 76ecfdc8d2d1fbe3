package main

import (
	"fmt"
	"time"

	"francoggm/travelpay/internal/app/session"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Credential helpers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect [credential]",
		Short: "Print when a credential expires, without verifying its signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := session.ExpiryOf(args[0])
			if err != nil {
				return fmt.Errorf("cannot read credential: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "expires at: %s\n", exp.UTC().Format(time.RFC3339))

			if remaining := time.Until(exp); remaining > 0 {
				fmt.Fprintf(out, "valid for:  %s\n", remaining.Round(time.Second))
			} else {
				fmt.Fprintln(out, "status:     expired")
			}

			return nil
		},
	})

	return cmd
}
