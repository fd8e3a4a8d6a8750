package main // Entry point package

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/parkline/tonpark/internal/config"
	"github.com/parkline/tonpark/internal/database"
	"github.com/parkline/tonpark/internal/handler"
	"github.com/parkline/tonpark/internal/indexer"
	"github.com/parkline/tonpark/internal/payment"
	"github.com/parkline/tonpark/internal/queue"
	"github.com/parkline/tonpark/internal/repository"
	"github.com/parkline/tonpark/internal/reservation"
	"github.com/parkline/tonpark/internal/router"
	"github.com/parkline/tonpark/internal/service"
)

func main() {
	// .env is optional; in containers everything arrives via the
	// environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("main: no .env file loaded: %v", err)
	}

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("main: opening database: %v", err)
	}
	defer db.Close()

	zoneRepo := repository.NewZoneRepo(db)
	spaceRepo := repository.NewSpaceRepo(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zones, err := zoneRepo.List(ctx)
	if err != nil {
		log.Fatalf("main: loading zones: %v", err)
	}
	spaces, err := spaceRepo.List(ctx)
	if err != nil {
		log.Fatalf("main: loading spaces: %v", err)
	}
	log.Printf("main: loaded %d zones, %d spaces", len(zones), len(spaces))

	idx := indexer.New(indexer.Config{
		URL:     cfg.IndexerURL,
		APIKey:  cfg.IndexerAPIKey,
		Timeout: cfg.IndexerTimeout,
	})

	engine := reservation.New(reservation.Config{
		Spaces:   spaces,
		Zones:    zones,
		Registry: reservation.NewRegistry(repository.NewSessionRepo(db)),
		Verifier: payment.NewVerifier(idx, cfg.ToleranceNano),
		Payments: repository.NewPaymentRepo(db),
		Store:    spaceRepo,
		Events:   service.NewEventPublisher(os.Getenv("RABBITMQ_URL")),
		Wallet:   cfg.WalletAddress,
	})

	sweeper := reservation.NewSweeper(engine, cfg.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	go func() {
		if err := queue.StartSpaceEventConsumer(); err != nil {
			log.Printf("main: space event consumer stopped: %v", err)
		}
	}()

	rdb := config.NewRedisClient()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterPublic(e, handler.NewSpaceHandler(engine), rdb)
	router.RegisterReservations(e, handler.NewReservationHandler(engine), cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
