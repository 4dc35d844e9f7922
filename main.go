package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"obrolin/server/internal/chat"
	"obrolin/server/internal/config"
	"obrolin/server/internal/database"
	"obrolin/server/internal/handlers"
	"obrolin/server/internal/logger"
	"obrolin/server/internal/routes"
	"obrolin/server/internal/store"
	"obrolin/server/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Environment)
	defer log.Sync()

	// Storage: Postgres when configured, in-memory otherwise (dev mode).
	var stores store.Stores
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := database.Migrate(context.Background(), pool); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
		stores = store.NewPostgres(pool).Stores()
		log.Info("database connected")
	} else {
		stores = store.NewMemory().Stores()
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	registry := chat.NewRegistry(stores, chat.RegistryConfig{RequireContact: cfg.RequireContact}, log)
	messages := chat.NewMessages(stores, registry, log)

	hub := ws.NewHub(messages, stores.Users, log)
	messages.SetPublisher(hub)
	go hub.Run()
	defer hub.Close()

	h := handlers.New(stores, registry, messages, hub, []byte(cfg.JWTSecret), cfg.RequestTimeout, log)

	app := fiber.New(fiber.Config{
		AppName: "Obrolin API v1.0",
	})

	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowCredentials: true,
	}))

	routes.SetupRoutes(app, h, []byte(cfg.JWTSecret))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		_ = app.Shutdown()
	}()

	log.Info("server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
