package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/draftguard/internal/rest"
	"github.com/robalyx/draftguard/internal/setup"
	"github.com/robalyx/draftguard/internal/setup/telemetry"
	"go.uber.org/zap"
)

// APILogDir specifies where API server log files are stored.
const APILogDir = "logs/api_logs"

// Server timeouts.
const (
	ReadTimeout     = 5 * time.Second
	ShutdownTimeout = 30 * time.Second
)

func main() {
	// Initialize application with required dependencies
	app, err := setup.InitializeApp(context.Background(), telemetry.ServiceAPI, APILogDir, "")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(context.Background())

	services, err := setup.NewServices(app)
	if err != nil {
		app.Logger.Fatal("Failed to create services", zap.Error(err))
	}

	// Warm the ADP snapshot so the first completed draft does not pay for it
	if err := services.ADP.Refresh(context.Background()); err != nil {
		app.Logger.Warn("Failed to load ADP snapshot", zap.Error(err))
	}

	// Create server
	handler := rest.NewServer(rest.Dependencies{
		Models:     app.DB.Model(),
		Observer:   services.Recorder,
		Queue:      services.Queue,
		Review:     services.Review,
		Authorizer: services.Authorizer,
		Batch:      services.CrossDraft,
	}, app.Logger, &app.Config.API)
	defer handler.Close()

	addr := app.Config.API.ListenAddr

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: time.Duration(app.Config.API.RequestTimeout) * time.Millisecond,
	}

	// Start server in a goroutine
	go func() {
		app.Logger.Info("API server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	app.Logger.Info("Shutting down API server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		app.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let background proximity comparisons finish before the database closes
	services.Recorder.Wait()

	app.Logger.Info("Server gracefully stopped")
}
