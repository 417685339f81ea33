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

	"harshuu/config"
	"harshuu/pkg/api"
	"harshuu/pkg/clockx"
	"harshuu/pkg/gateway"
	"harshuu/pkg/logger"
	"harshuu/pkg/notify"
	"harshuu/service"
	"harshuu/storage/postgres"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.ServiceName)
	log.Info("starting service", logger.String("name", cfg.ServiceName))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stg, err := postgres.New(ctx, cfg, log)
	if err != nil {
		log.Error("postgres connect failed", logger.Error(err))
		os.Exit(1)
	}
	defer stg.Close()

	notifier, err := notify.NewRabbit(notify.RabbitConfig{
		Host:     cfg.RabbitHost,
		Port:     cfg.RabbitPort,
		User:     cfg.RabbitUser,
		Password: cfg.RabbitPassword,
	})
	if err != nil {
		log.Warning("rabbitmq unavailable, events disabled", logger.Error(err))
		notifier = notify.Nop()
	}
	defer notifier.Close()

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret)

	svc := service.New(stg, gw, notifier, clockx.New(), log, service.Options{
		GatewaySecret:      cfg.GatewayKeySecret,
		Currency:           cfg.Currency,
		AssignmentRadiusKm: cfg.AssignmentRadiusKm,
		AssignmentTimeout:  cfg.AssignmentTimeout,
		CancelWindow:       cfg.CancelWindow,
	})

	handler := api.NewHandler(svc, stg.Partner(), log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.AppPort),
		Handler: api.NewRouter(handler),
	}

	go func() {
		log.Info("http server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", logger.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Error(err))
	}
}
