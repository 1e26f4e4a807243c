package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"marketpipe/internal/analytics"
	appinstruments "marketpipe/internal/application/service/instruments"
	appmarketdata "marketpipe/internal/application/service/marketdata"
	"marketpipe/internal/config"
	domain "marketpipe/internal/domain/entity/marketdata"
	"marketpipe/internal/infrastructure/broker"
	infrainstruments "marketpipe/internal/infrastructure/instruments"
	inframarketdata "marketpipe/internal/infrastructure/marketdata"
	"marketpipe/internal/ingestion"
	infrahttp "marketpipe/internal/interfaces/http"
	"marketpipe/internal/orderbook"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
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

	manager := orderbook.NewManager(logger)
	handler := ingestion.NewFeedHandler(cfg.Feed.SymbolList(), manager, ingestion.HandlerConfig{
		BufferSize:     cfg.Feed.BufferSize,
		GapThreshold:   cfg.Feed.GapThreshold,
		AuditInterval:  cfg.Feed.AuditInterval,
		SpreadAlertPct: cfg.Feed.SpreadAlertPct,
	}, logger)

	engine := analytics.NewEngine(manager, analytics.NewAnalytics(0, logger), 0, logger)

	var marketdataRepo *inframarketdata.Repository
	if cfg.Postgres.Enabled() {
		marketdataRepo, err = inframarketdata.NewRepository(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatalf("failed to init marketdata repo: %v", err)
		}
		defer marketdataRepo.Close()
	}

	var instrumentService *appinstruments.Service
	if cfg.Postgres.Enabled() {
		instrumentRepo, err := infrainstruments.NewRepository(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatalf("failed to init instruments repo: %v", err)
		}
		defer instrumentRepo.Close()
		instrumentService = appinstruments.NewService(instrumentRepo)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis unavailable, response cache disabled: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	marketdataService := appmarketdata.NewService(handler, engine, nil)
	if marketdataRepo != nil {
		marketdataService = appmarketdata.NewService(handler, engine, marketdataRepo)
	}

	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	httpHandler := infrahttp.NewHandler(instrumentService, marketdataService, redisClient, cacheTTL)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: httpHandler,
	}

	g, gctx := errgroup.WithContext(ctx)

	ingest := func(update *domain.MarketUpdate) {
		if handler.ProcessUpdate(update) {
			engine.RecordUpdate(update)
		}
	}

	switch cfg.Feed.Source {
	case "amqp":
		consumer, err := broker.NewConsumer(cfg.RabbitMQ, ingest, logger)
		if err != nil {
			logger.Fatalf("failed to init consumer: %v", err)
		}
		if err := consumer.Start(gctx); err != nil {
			logger.Fatalf("failed to start consumer: %v", err)
		}
		defer consumer.Close()
	default:
		simulator := ingestion.NewSimulator(cfg.Feed.Symbols, cfg.Feed.Volatility, cfg.Feed.UpdateInterval, logger)
		g.Go(func() error {
			err := simulator.Run(gctx, func(update *domain.MarketUpdate) error {
				ingest(update)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		err := engine.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return runMonitor(gctx, handler, engine, 5*time.Second, logger)
	})

	if marketdataRepo != nil {
		writer := inframarketdata.NewSnapshotWriter(inframarketdata.BatchConfig{
			Size:    len(cfg.Feed.Symbols),
			Timeout: cfg.Feed.PersistPeriod,
		}, marketdataRepo, logger)
		writer.Run(gctx)
		g.Go(func() error {
			defer func() {
				flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer flushCancel()
				if err := writer.Stop(flushCtx); err != nil {
					logger.WithError(err).Error("failed to flush snapshots on shutdown")
				}
			}()
			return runSnapshotPersistence(gctx, handler, writer, cfg.Feed.PersistPeriod, cfg.Feed.SnapshotDepth, logger)
		})
	}

	g.Go(func() error {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.WithFields(logrus.Fields{
		"symbols": len(cfg.Feed.Symbols),
		"source":  cfg.Feed.Source,
		"storage": cfg.Postgres.Enabled(),
	}).Info("pipeline started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("pipeline stopped with error: %v", err)
	}

	stats := handler.Stats()
	logger.WithFields(logrus.Fields{
		"accepted":      stats.Accepted,
		"small_gaps":    stats.SmallGaps,
		"large_gaps":    stats.LargeGaps,
		"crossed_books": stats.CrossedBooks,
	}).Info("pipeline stopped")
}

// runMonitor periodically logs the state of every book together with its
// latest analytics.
func runMonitor(ctx context.Context, handler *ingestion.FeedHandler, engine *analytics.Engine, period time.Duration, logger *logrus.Logger) error {
	entry := logger.WithField("component", "monitor")
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, symbol := range handler.Manager().Symbols() {
				snapshot := handler.BookSnapshot(symbol)
				if snapshot == nil {
					continue
				}
				fields := logrus.Fields{
					"symbol":     symbol,
					"sequence":   snapshot.SequenceNumber,
					"bid_levels": len(snapshot.Bids),
					"ask_levels": len(snapshot.Asks),
				}
				if bid := snapshot.BestBid(); bid != nil {
					fields["best_bid"] = bid.Price
				}
				if ask := snapshot.BestAsk(); ask != nil {
					fields["best_ask"] = ask.Price
				}
				if metrics := engine.LatestMetrics(symbol); metrics != nil {
					fields["spread"] = metrics.Spread
					fields["mid_price"] = metrics.MidPrice
					fields["imbalance"] = metrics.OrderImbalance
				}
				summary := engine.Summary(symbol)
				if !summary.MovingAverage.IsZero() {
					fields["moving_average"] = summary.MovingAverage
					fields["volatility"] = summary.Volatility
				}
				entry.WithFields(fields).Info("book state")
			}
		}
	}
}

// runSnapshotPersistence writes one depth-limited snapshot per symbol each
// period.
func runSnapshotPersistence(ctx context.Context, handler *ingestion.FeedHandler, writer *inframarketdata.SnapshotWriter, period time.Duration, depth int, logger *logrus.Logger) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, symbol := range handler.Manager().Symbols() {
				book := handler.Manager().GetBook(symbol)
				if book == nil {
					continue
				}
				snapshot := book.SnapshotAt(depth)
				if err := writer.Add(snapshot); err != nil {
					logger.WithError(err).WithField("symbol", symbol).Warn("failed to enqueue snapshot")
				}
			}
		}
	}
}
