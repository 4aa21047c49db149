package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/filmoteca/filmoteca/internal/config"
	"github.com/filmoteca/filmoteca/internal/database"
	"github.com/filmoteca/filmoteca/internal/router"
	"github.com/filmoteca/filmoteca/internal/tmdb"
)

func main() {
	// .env is a dev convenience; in real deployments the variables come from
	// the environment and the file is absent.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(ctx, db); err != nil {
		cancel()
		log.Fatalf("database migration failed: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, cache and rate limiting disabled")
	}

	tmdbClient := tmdb.NewClient(config.LoadTMDBConfig())

	e := echo.New()
	e.HideBanner = true
	router.Register(e, db, &cfg, rdb, tmdbClient)

	log.Printf("listening on :%s (%s)", cfg.Port, cfg.Env)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
