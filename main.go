package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-backend/config"
	"crm-backend/routes"
	"crm-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.LoadConfig()
	config.SetupLogger(cfg.Env, cfg.LogLevel)
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.ConnectDB(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect database")
	}
	if err := config.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	opts := []services.LedgerOption{services.WithOrderNumberAttempts(cfg.OrderNumberAttempts)}

	if cfg.Redis.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := config.NewRedisClient(ctx, cfg.Redis)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect redis")
		}
		defer rdb.Close()
		opts = append(opts, services.WithSequencer(services.NewRedisSequencer(rdb)))
	}

	if cfg.Rabbit.URL != "" {
		publisher, err := services.NewRabbitPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect rabbitmq")
		}
		defer publisher.Close()
		opts = append(opts, services.WithPublisher(publisher))
		log.Info().Str("exchange", cfg.Rabbit.Exchange).Msg("Publishing order events")
	}

	ledger := services.NewOrderLedger(db, opts...)

	reconciler := services.NewReconcileService(ledger)
	if err := reconciler.StartScheduler(cfg.ReconcileSchedule); err != nil {
		log.Fatal().Err(err).Msg("Invalid RECONCILE_SCHEDULE")
	}
	defer reconciler.Stop()

	r, err := routes.SetupRouter(cfg, ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up router")
	}
	printRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown")
	}
}

func printRoutes(r *gin.Engine) {
	for _, route := range r.Routes() {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
