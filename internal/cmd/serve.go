package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/olgasafonova/wiki-templates-uploader/tools"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// ServerName identifies the MCP server to clients.
const ServerName = "wiki-templates-uploader"

const serverInstructions = `Wiki templates uploader writes template pages to a MediaWiki site as a bot.

Available tools:
- wiki_upload_pages: Create or update a list of pages (paced, sequential)
- wiki_check_tokens: Check which API tokens the bot account may obtain
- wiki_parse_chunk_size: Convert a chunk size option such as 4mi to bytes
- wiki_check_ip: Check whether a user name is an IP address

Configure via environment variables:
- MEDIAWIKI_HOST: Wiki host (e.g., wiki.example.com)
- MEDIAWIKI_API_PATH: Script path (default /w/)
- MEDIAWIKI_USERNAME: Bot password user name
- MEDIAWIKI_PASSWORD: Bot password`

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an MCP server on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout. Logs go to stderr
because stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			pacer, err := pacerFromFlags(cmd)
			if err != nil {
				return err
			}
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			return runTraced(cmd, logger, func(ctx context.Context) error {
				client, err := openSession(ctx, cmd, logger)
				if err != nil {
					return err
				}
				defer client.Close()

				server := mcp.NewServer(&mcp.Implementation{
					Name:    ServerName,
					Version: cmd.Root().Version,
				}, &mcp.ServerOptions{
					Logger:       logger,
					Instructions: serverInstructions,
				})
				tools.NewHandlerRegistry(tools.NewService(client, pacer, logger), logger).RegisterAll(server)

				if metricsAddr != "" {
					stop := startMetricsServer(metricsAddr, logger)
					defer stop()
				}

				logger.Info("Starting MCP server",
					"name", ServerName,
					"version", cmd.Root().Version,
					"site", client.Site(),
					"logged_in", client.LoggedIn())
				return server.Run(ctx, &mcp.StdioTransport{})
			})
		},
	}

	addPacingFlags(cmd)
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

// startMetricsServer exposes /metrics in the background and returns a
// function that shuts it down.
func startMetricsServer(addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
