package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/academy-auth/internal/config"
	"github.com/iliyamo/academy-auth/internal/database"
	"github.com/iliyamo/academy-auth/internal/handler"
	"github.com/iliyamo/academy-auth/internal/queue"
	"github.com/iliyamo/academy-auth/internal/repository"
	"github.com/iliyamo/academy-auth/internal/router"
	"github.com/iliyamo/academy-auth/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	users := repository.NewUserRepo(db)

	// Refresh tokens live in MySQL by default; TOKEN_STORE=redis moves
	// them to Redis with TTL-based cleanup. If Redis is unreachable at
	// startup we fall back to MySQL rather than refusing to boot.
	var tokens repository.TokenStore = repository.NewTokenRepo(db)
	if cfg.TokenStore == "redis" {
		if rdb := config.NewRedisClient(); rdb != nil {
			tokens = repository.NewRedisTokenRepo(rdb)
		} else {
			log.Printf("redis unavailable, falling back to mysql token store")
		}
	}

	auth := service.NewAuthService(cfg, users, tokens, service.NewRabbitPublisher())

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), cfg.JWTSecret)

	// Audit consumer runs for the lifetime of the process and handles
	// its own reconnects.
	go func() {
		if err := queue.StartUserEventsConsumer(); err != nil {
			log.Printf("user-events consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
