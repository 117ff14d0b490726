package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rdv-service/internal/middleware"
	httptransport "rdv-service/internal/transport/http"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the background reconciler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(parent context.Context, opts *RootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()
	cfg, log := app.Config, app.Logger

	app.Reconciler.Start(ctx)

	handler := httptransport.NewHandler(app.Appointments, app.Auth, app.Reconciler, cfg.RetentionDays, log)
	server := httptransport.NewApp(handler, httptransport.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		ServiceToken:   cfg.ServiceExpectedToken,
		AccessLog:      true,
	})

	go func() {
		<-ctx.Done()
		log.Info("🛑 [SHUTDOWN] Graceful shutdown initiated...")
		if err := server.Shutdown(); err != nil {
			log.Error("❌ [SHUTDOWN] Error", zap.Error(err))
		}
	}()

	log.Info("🚀 rdv-service starting...",
		zap.String("port", cfg.ServerPort),
		zap.String("cors_origins", cfg.AllowedOrigins),
		zap.String("local_store", cfg.LocalStore),
		zap.Bool("remote_permitted", app.Mode.RemotePermitted()),
		zap.Bool("r2_enabled", cfg.R2Enabled()),
		zap.String("service_token", middleware.MaskToken(cfg.ServiceExpectedToken)),
	)

	if err := server.Listen(":" + cfg.ServerPort); err != nil {
		log.Error("❌ [STARTUP] Server failed to start", zap.Error(err))
		return err
	}
	return nil
}
