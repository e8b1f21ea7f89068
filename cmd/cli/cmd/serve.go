// Package cmd - serve command
package cmd

import (
	"github.com/spf13/cobra"

	"fibre-cost/api"
	"fibre-cost/internal/config"
	"fibre-cost/internal/logging"
)

var serveAddr string

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve the estimation API until interrupted.

Endpoints:
  POST  /api/v1/estimate            run one estimate
  POST  /api/v1/scenarios           compare build methods
  GET   /api/v1/history             recent committed estimates
  GET   /api/v1/audit               audit records (?status=, ?limit=)
  GET   /api/v1/audit/{id}          one audit record
  PATCH /api/v1/audit/{id}/status   review workflow
  GET   /api/v1/audit/analytics     audit summary (?days=)
  GET   /api/v1/catalog             active cost catalog
  PUT   /api/v1/catalog             replace the cost catalog
  GET   /health, /version, /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	addr := cfg.Server.Address
	if serveAddr != "" {
		addr = serveAddr
	}

	server := api.NewServer(api.Options{
		Engine:         a.Engine,
		History:        a.History,
		Audit:          a.Audit,
		Catalogs:       a.Catalogs,
		Version:        Version,
		AllowedOrigins: cfg.Server.CORSOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		ReadTimeout:    cfg.Server.ReadTimeout(),
		WriteTimeout:   cfg.Server.WriteTimeout(),
		Logger:         logging.Named("api"),
	})
	return server.ListenAndServe(ctx, addr)
}
