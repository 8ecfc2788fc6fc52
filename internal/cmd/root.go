// Package cmd implements the templates-uploader command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/olgasafonova/wiki-templates-uploader/tracing"
	"github.com/olgasafonova/wiki-templates-uploader/uploader"
	"github.com/olgasafonova/wiki-templates-uploader/wiki"
	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "templates-uploader",
		Short: "Create or update wiki template pages",
		Long: `templates-uploader writes a fixed list of pages to a MediaWiki site as a bot,
uploads files in chunks, and can expose the same operations as MCP tools.

Connection settings come from MEDIAWIKI_* environment variables and can be
overridden with flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("host", "", "Wiki host without scheme (default $MEDIAWIKI_HOST)")
	pf.String("api-path", "", "Script path that holds api.php (default $MEDIAWIKI_API_PATH or /w/)")
	pf.String("username", "", "Bot password user name, e.g. Admin@uploader (default $MEDIAWIKI_USERNAME)")
	pf.String("password", "", "Bot password (default $MEDIAWIKI_PASSWORD)")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(NewUploadCommand())
	rootCmd.AddCommand(NewUploadFileCommand())
	rootCmd.AddCommand(NewChunkSizeCommand())
	rootCmd.AddCommand(NewTokensCommand())
	rootCmd.AddCommand(NewServeCommand())

	return rootCmd
}

// newLogger writes structured logs to the command's stderr.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	name, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", name)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}

// loadConfig merges the environment with the global flags.
func loadConfig(cmd *cobra.Command) (*wiki.Config, error) {
	flags := cmd.Flags()
	host, _ := flags.GetString("host")

	config, err := wiki.LoadConfigForHost(host)
	if err != nil {
		return nil, fmt.Errorf("no wiki host: pass --host or set MEDIAWIKI_HOST")
	}
	if v, _ := flags.GetString("api-path"); v != "" {
		config.APIPath = v
	}
	if v, _ := flags.GetString("username"); v != "" {
		config.Username = v
	}
	if v, _ := flags.GetString("password"); v != "" {
		config.Password = v
	}
	return config, nil
}

// openSession logs in when credentials are configured. Without them the
// client stays anonymous and write operations refuse to run.
func openSession(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) (*wiki.Client, error) {
	config, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if !config.HasCredentials() {
		logger.Warn("No credentials configured, continuing anonymously", "site", config.Host)
		return wiki.NewClient(config, logger), nil
	}
	return uploader.Login(ctx, config, logger)
}

// runTraced runs fn with tracing configured from OTEL_* variables and
// flushes spans afterwards.
func runTraced(cmd *cobra.Command, logger *slog.Logger, fn func(ctx context.Context) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	config := tracing.DefaultConfig()
	if v := cmd.Root().Version; v != "" {
		config.ServiceVersion = v
	}
	config.Writer = cmd.ErrOrStderr()

	shutdown, err := tracing.Setup(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	return fn(ctx)
}
