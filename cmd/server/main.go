package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/app"
	"github.com/shrimpsizemoose/attendo/internal/handlers"
	"github.com/shrimpsizemoose/attendo/internal/nav"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath, envFile string

	cmd := &cobra.Command{
		Use:           "attendo",
		Short:         "Exam attendance tracking server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(envFile); err != nil {
				logger.Debug.Printf("No env file at %s, using process environment", envFile)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to the TOML config file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before ATTENDO_* overrides")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to gateway.dsn and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return app.Migrate(config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Run: func(cmd *cobra.Command, args []string) {
			for _, r := range nav.Routes {
				guard := ""
				if r.RequiresAuth {
					guard = " (auth)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s%s\n", r.Name, r.Path, guard)
			}
		},
	})

	return cmd
}

func serve(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := app.NewService(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer service.Close()

	mux := http.NewServeMux()
	handlers.NewHandler(service).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              service.Config.Server.Port,
		Handler:           handlers.WithMetrics(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("Shutdown: %v", err)
		}
	}()

	logger.Info.Printf("Starting attendo server on %s", service.Config.Server.Port)
	logger.Debug.Printf("Authentication enabled: %t", service.Auth.Enabled())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("attendo server failed: %w", err)
	}
	logger.Info.Println("Attendo server stopped")
	return nil
}
