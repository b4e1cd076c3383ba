package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/valeevte/PriceTrackerBot/internal/api"
	"github.com/valeevte/PriceTrackerBot/internal/config"
	"github.com/valeevte/PriceTrackerBot/internal/fetch"
	"github.com/valeevte/PriceTrackerBot/internal/history"
	"github.com/valeevte/PriceTrackerBot/internal/oplog"
	"github.com/valeevte/PriceTrackerBot/internal/scheduler"
	"github.com/valeevte/PriceTrackerBot/internal/telegram"
	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

func main() {
	_ = godotenv.Load() // load .env if present; not fatal if missing

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := oplog.New(cfg.LogDir)
	if err != nil {
		log.Fatalf("open log dir: %v", err)
	}

	store, err := tracker.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	// graceful shutdown coordination
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := fetch.NewClient(cfg.Headers, cfg.FetchTimeout)

	bot, err := telegram.New(telegram.Options{
		Token:      cfg.BotToken,
		AdminID:    cfg.AdminID,
		Public:     cfg.Public,
		RetryDelay: cfg.RetryDelay,
	}, store, fetcher, logger)
	if err != nil {
		log.Fatalf("start bot: %v", err)
	}
	logger.SetAdminNotifier(bot)

	// optional price-history sink
	var sink scheduler.PriceSink
	if cfg.PostgresDSN != "" {
		pool, err := history.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		s := history.NewSink(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			log.Fatalf("prepare history schema: %v", err)
		}
		sink = s
	}

	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		bot.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		// scheduler runs until ctx is cancelled
		scheduler.New(store, fetcher, bot, sink, logger, scheduler.Config{
			Interval:         cfg.CheckInterval,
			UserDelay:        cfg.UserDelay,
			RetryDelay:       cfg.RetryDelay,
			FailureThreshold: cfg.FailureThreshold,
		}).Run(ctx)
	}()

	// read-only HTTP API
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(os.Getenv("GIN_MODE"))
	}
	r := gin.Default()
	api.NewHandler(store).Register(r)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("server started on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server ListenAndServe: %v", err)
		}
	}()

	// wait for interrupt
	<-ctx.Done()
	log.Println("shutdown signal received")

	// stop accepting new requests, allow 15s to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server Shutdown: %v", err)
	}

	// wait for the bot and scheduler (they react to ctx)
	wg.Wait()

	log.Println("graceful shutdown complete")
}
