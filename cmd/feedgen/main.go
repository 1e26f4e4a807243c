package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"marketpipe/internal/config"
	domain "marketpipe/internal/domain/entity/marketdata"
	"marketpipe/internal/infrastructure/broker"
	"marketpipe/internal/ingestion"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if !cfg.RabbitMQ.Enabled() {
		logger.Fatal("AMQP_URL is required")
	}

	publisher, err := broker.NewPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Fatalf("failed to init publisher: %v", err)
	}
	defer publisher.Close()

	simulator := ingestion.NewSimulator(cfg.Feed.Symbols, cfg.Feed.Volatility, cfg.Feed.UpdateInterval, logger)

	logger.WithFields(logrus.Fields{
		"symbols":  len(cfg.Feed.Symbols),
		"exchange": cfg.RabbitMQ.Exchange,
	}).Info("feed generator started")

	err = simulator.Run(ctx, func(update *domain.MarketUpdate) error {
		return publisher.PublishUpdate(ctx, update)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("feed generator stopped with error: %v", err)
	}
	logger.Info("feed generator stopped")
}
