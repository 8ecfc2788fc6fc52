package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/olgasafonova/wiki-templates-uploader/internal/chunksize"
	"github.com/olgasafonova/wiki-templates-uploader/wiki"
	"github.com/spf13/cobra"
)

func NewUploadFileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload-file PATH",
		Short: "Upload a file, optionally in chunks",
		Long: `Upload the file at PATH to the wiki.

--chunked without a value sends 1 MiB chunks. A value takes an optional unit:
k (1000), m (1000000), ki (1024) or mi (1048576), e.g. --chunked=4mi.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}

			var chunk int64
			if cmd.Flags().Changed("chunked") {
				value, _ := cmd.Flags().GetString("chunked")
				if chunk, err = chunksize.FromFlag(value); err != nil {
					return err
				}
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = filepath.Base(args[0])
			}
			comment, _ := cmd.Flags().GetString("comment")
			text, _ := cmd.Flags().GetString("text")
			ignoreWarnings, _ := cmd.Flags().GetBool("ignore-warnings")

			return runTraced(cmd, logger, func(ctx context.Context) error {
				client, err := openSession(ctx, cmd, logger)
				if err != nil {
					return err
				}
				defer client.Close()

				if !client.LoggedIn() {
					return fmt.Errorf("uploading requires a logged-in account")
				}

				result, err := client.UploadFile(ctx, wiki.FileUpload{
					Filename:       name,
					Data:           data,
					ChunkSize:      chunk,
					Comment:        comment,
					Text:           text,
					IgnoreWarnings: ignoreWarnings,
				})
				for _, w := range result.Warnings {
					fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgYellow).Sprint("warning: "+w))
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s File:%s (%d bytes, %d chunks)\n",
					color.New(color.FgGreen).Sprint("Uploaded"),
					result.Filename, len(data), result.Chunks)
				if result.URL != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", result.URL)
				}
				return nil
			})
		},
	}

	cmd.Flags().String("name", "", "Target file name, with or without File: (default: base name of PATH)")
	cmd.Flags().String("chunked", "", "Upload in chunks of this size (default 1mi when given without a value)")
	cmd.Flags().Lookup("chunked").NoOptDefVal = "default"
	cmd.Flags().String("comment", "", "Upload comment")
	cmd.Flags().String("text", "", "Initial file description page text")
	cmd.Flags().Bool("ignore-warnings", false, "Upload even if the wiki warns, e.g. about duplicates")

	return cmd
}
