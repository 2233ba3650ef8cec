package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casklane/stockfeed/internal/config"
	"github.com/casklane/stockfeed/internal/status"
	"github.com/casklane/stockfeed/internal/supervisor"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the status polling HTTP server command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run status documents over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			store, err := supervisor.NewStore(cfg.Importer.StatusDir)
			if err != nil {
				return err
			}

			handler := status.NewHandler(store)

			server := &http.Server{
				Addr:         cfg.Importer.ListenAddr,
				Handler:      handler.Routes(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				log.Printf("Starting status server on %s", cfg.Importer.ListenAddr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()

			// Wait for interrupt signal to gracefully shutdown the server
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			log.Println("Shutting down server...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}

			log.Println("Server exited")
			return nil
		},
	}
	return cmd
}
