package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-tutor-be/internal/bootstrap"
	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/server"
	"ai-tutor-be/internal/tracer"
	"ai-tutor-be/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg := config.Load()

	// 2. Tracing, a no-op unless OTEL_ENABLED=true
	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())

	// 3. Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Bootstrap dependencies
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Panicf("Unable to build container: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background services
	go container.WebSocketHub.Run(ctx)

	go func() {
		container.Logger.Info("Main", "Starting ingestion consumer", nil)
		if err := container.ConsumerService.Consume(ctx); err != nil {
			container.Logger.Error("Main", "Ingestion consumer stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	if container.EventService != nil {
		if err := container.EventService.Start(ctx); err != nil {
			container.Logger.Warn("Main", "Event service not started", map[string]interface{}{"error": err.Error()})
		}
	}

	// 6. Server
	srv := server.New(cfg, container)
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
