package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/Inventario-valuation/internal/application/usecase"
	"github.com/jhoicas/Inventario-valuation/internal/infrastructure/cache"
	"github.com/jhoicas/Inventario-valuation/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Inventario-valuation/internal/interfaces/http"
	"github.com/jhoicas/Inventario-valuation/pkg/config"
	"github.com/jhoicas/Inventario-valuation/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando API de valorización")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	// Redis es opcional: sin REDIS_ADDR la caché es un pass-through.
	var redisClient *redis.Client
	if cfg.Cache.RedisAddr != "" {
		redisClient, err = cache.Connect(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis no disponible, se sigue sin caché")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	responseCache := cache.NewVersioned(redisClient, cfg.Cache.TTL)

	valuationRepo := postgres.NewValuationRepository(pool)
	moduleRepo := postgres.NewModuleRepository(pool)
	valuationUC := usecase.NewValuationUseCase(valuationRepo, responseCache, log.Component("valuation"))
	moduleSvc := usecase.NewModuleService(moduleRepo, time.Minute)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Inventario Valorizado API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		AppName:       cfg.App.Name,
		ValuationUC:   valuationUC,
		ModuleService: moduleSvc,
		JWTSecret:     cfg.JWT.Secret,
		Log:           log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
