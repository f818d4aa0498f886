package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geocad/internal/common/config"
	"geocad/internal/common/logger"
	"geocad/internal/common/middleware"
	"geocad/internal/geocad/geodesy"
	"geocad/internal/geocad/handlers"
	"geocad/internal/geocad/repository"
	"geocad/internal/geocad/service"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/rs/zerolog"
)

// ============================================================
// GeoCAD Service
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("open store")
	}
	defer store.Close()

	svc := service.New(store, service.NewFileStorage(cfg.FilesRoot), geodesy.NewProjections(), cfg.EntityCap, log)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    64 << 20,
		AppName:      "GeoCAD Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger("/health"))
	app.Use(middleware.CORS(cfg.CORSOrigins...))

	// ============================================================
	// Routes
	// ============================================================

	handlers.NewDrawingHandler(svc, log).Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	go shutdownOnSignal(app, log)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().Str("addr", addr).Str("env", cfg.Environment).Str("store", cfg.Store).Msg("starting GeoCAD service")

	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}

// openStore выбирает хранилище по конфигурации.
func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.Store == "memory" {
		return repository.NewMemory(), nil
	}
	db, err := repository.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	repo := repository.New(db)
	if err := repo.Init(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init db: %w", err)
	}
	return repo, nil
}

func shutdownOnSignal(app *fiber.App, log zerolog.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
