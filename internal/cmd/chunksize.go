package cmd

import (
	"fmt"

	"github.com/olgasafonova/wiki-templates-uploader/internal/chunksize"
	"github.com/spf13/cobra"
)

func NewChunkSizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk-size OPTION",
		Short: "Print the byte count of a chunk size option",
		Example: `  templates-uploader chunk-size 4mi
  templates-uploader chunk-size -- -chunked:500k`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := chunksize.ParseArg(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), size)
			return nil
		},
	}

	return cmd
}
