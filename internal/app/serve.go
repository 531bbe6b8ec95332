package app

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/monitoring"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/server"
)

var (
	serveAddr      string
	serveRedisAddr string
	serveRedisPass string
	serveRedisDB   int
	serveSwagger   bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the notebook analysis HTTP API",
		Long: `Start the HTTP server exposing the analysis pipeline and the run
history. Redis, when configured, backs distributed rate limiting;
without it the server falls back to in-memory limits.`,
		Example: `  # Serve on the default port
  notebook-analyzer serve

  # Serve with Redis-backed rate limiting
  notebook-analyzer serve --redis-addr localhost:6379`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveRedisAddr, "redis-addr", "", "Redis address for distributed rate limiting")
	serveCmd.Flags().StringVar(&serveRedisPass, "redis-password", "", "Redis password")
	serveCmd.Flags().IntVar(&serveRedisDB, "redis-db", 0, "Redis database number")
	serveCmd.Flags().BoolVar(&serveSwagger, "swagger", true, "serve the Swagger UI")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := monitoring.NewLogger()
	slog.SetDefault(logger.Logger)

	dir, err := dataDir()
	if err != nil {
		return err
	}

	cfg := server.DefaultConfig()
	cfg.Addr = serveAddr
	cfg.DataDir = dir
	cfg.ConfigPath = configPath
	cfg.RedisAddr = serveRedisAddr
	cfg.RedisPassword = serveRedisPass
	cfg.RedisDB = serveRedisDB
	cfg.EnableSwagger = serveSwagger

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	return srv.Run(cmd.Context())
}
