package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/olgasafonova/wiki-templates-uploader/wiki"
	"github.com/spf13/cobra"
)

func NewTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens TYPE...",
		Short: "Check which API tokens the account may obtain",
		Long: `Request each token type and report whether the account may use it.
Legacy names such as edit or move resolve to csrf. Token values are not printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}

			return runTraced(cmd, logger, func(ctx context.Context) error {
				client, err := openSession(ctx, cmd, logger)
				if err != nil {
					return err
				}
				defer client.Close()

				out := cmd.OutOrStdout()
				for _, tokenType := range args {
					_, err := client.Tokens().Get(ctx, tokenType)
					var tokErr *wiki.TokenError
					switch {
					case err == nil:
						fmt.Fprintf(out, "%-12s %s\n", tokenType, color.New(color.FgGreen).Sprint("available"))
					case errors.As(err, &tokErr):
						fmt.Fprintf(out, "%-12s %s\n", tokenType, color.New(color.FgRed).Sprint(tokErr.Error()))
					default:
						return err
					}
				}
				return nil
			})
		},
	}

	return cmd
}
