package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olgasafonova/wiki-templates-uploader/uploader"
	"github.com/spf13/cobra"
)

func NewUploadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload PAGES_FILE",
		Short: "Create or update the pages listed in a YAML or JSON file",
		Long: `Create or update every page listed in PAGES_FILE, in order.

PAGES_FILE holds a list of {id, body} records, either at the top level or
under a "pages" key. Each page is checked, saved as a bot edit and purged,
then the pacer waits before the next one. The first failure stops the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}

			pages, err := uploader.LoadPages(args[0])
			if err != nil {
				return err
			}
			pacer, err := pacerFromFlags(cmd)
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			summary, _ := cmd.Flags().GetString("summary")

			return runTraced(cmd, logger, func(ctx context.Context) error {
				client, err := openSession(ctx, cmd, logger)
				if err != nil {
					return err
				}
				defer client.Close()

				up := uploader.New(client,
					uploader.WithPacer(pacer),
					uploader.WithLogger(logger),
					uploader.WithSummary(summary))

				report, err := up.UploadPages(ctx, pages, dryRun)
				printReport(cmd.OutOrStdout(), report, client.LoggedIn())
				return err
			})
		},
	}

	cmd.Flags().Bool("dry-run", false, "Check pages and report what would change without writing")
	cmd.Flags().String("summary", uploader.DefaultSummary, "Edit summary; %s is replaced by the page title")
	addPacingFlags(cmd)

	return cmd
}

func addPacingFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("sleep", uploader.DefaultInterval, "Pause between page writes")
	cmd.Flags().String("pacer", "fixed", "Pacing strategy: fixed, bucket or none")
	cmd.Flags().Int("burst", 1, "Writes allowed back to back with --pacer=bucket")
}

func pacerFromFlags(cmd *cobra.Command) (uploader.Pacer, error) {
	kind, _ := cmd.Flags().GetString("pacer")
	sleep, _ := cmd.Flags().GetDuration("sleep")
	burst, _ := cmd.Flags().GetInt("burst")
	return uploader.PacerFor(kind, sleep, burst)
}

func printReport(w io.Writer, report uploader.Report, loggedIn bool) {
	if !loggedIn {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("Not logged in, nothing uploaded."))
		return
	}

	verb := "Uploaded"
	if report.DryRun {
		verb = "Dry run"
	}
	fmt.Fprintf(w, "%s: %s created, %s updated\n",
		verb,
		color.New(color.FgGreen).Sprint(report.Created),
		color.New(color.FgCyan).Sprint(report.Updated))
	for _, title := range report.Titles {
		fmt.Fprintf(w, "  %s\n", title)
	}
}
