package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"neon2retro/internal/config"
	"neon2retro/internal/logger"
	"neon2retro/internal/migration"
	"neon2retro/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the migration behind a small REST API",
	Long: `Start an HTTP server exposing the migration:

  GET  /                 service description
  GET  /health           liveness
  GET  /mappings         column mappings
  GET  /records?limit=N  source invoices
  GET  /test-connection  Retro login and database check
  POST /push             {"record_id": 42} or {"limit": 5}; runs a migration

Only one migration runs at a time; a second POST /push gets 409.
The listen address comes from --addr or SERVER_ADDR (default :8000).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: SERVER_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig(config.PartSource, config.PartDestination, config.PartReferences)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.ServerAddr
	}

	migrator, err := newMigrator(cfg, migration.Options{Delay: cfg.SendDelay})
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(server.Deps{
		Runner:         migrator,
		Records:        server.RecordListerFunc(listRecords(cfg)),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
