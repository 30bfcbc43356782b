// Command resetd runs the password reset engine behind an HTTP API, wiring
// Redis for reset state, Postgres for the user directory, and SMTP for code
// delivery.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/httpapi"
	"github.com/MrEthical07/goReset/mailer"
	"github.com/MrEthical07/goReset/providers/postgres"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("resetd: DATABASE_URL is required")
	}

	db, err := postgres.Connect(databaseURL)
	if err != nil {
		log.Fatalf("resetd: postgres connect: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer rdb.Close()

	sender := mailer.NewSMTPSender(
		envOr("SMTP_HOST", "localhost"),
		envOr("SMTP_PORT", "25"),
		os.Getenv("SMTP_USERNAME"),
		os.Getenv("SMTP_PASSWORD"),
		envOr("SMTP_FROM", "no-reply@example.com"),
	)

	engine, err := goReset.New().
		WithRedis(rdb).
		WithUserDirectory(postgres.NewDirectory(db)).
		WithMailer(sender).
		WithAuditSink(goReset.NewJSONWriterSink(os.Stderr)).
		Build()
	if err != nil {
		log.Fatalf("resetd: engine build: %v", err)
	}
	defer engine.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	httpapi.Register(e, engine)

	e.Logger.Fatal(e.Start(envOr("LISTEN_ADDR", ":8080")))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
