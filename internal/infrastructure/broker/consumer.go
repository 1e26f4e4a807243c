package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"marketpipe/internal/config"
	domain "marketpipe/internal/domain/entity/marketdata"
	"marketpipe/internal/ingestion"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// HandleFunc receives each decoded market update in delivery order.
type HandleFunc func(update *domain.MarketUpdate)

// Consumer subscribes to the update exchange and forwards decoded
// updates to a handler. Malformed frames are dropped, not requeued.
type Consumer struct {
	cfg    config.RabbitMQConfig
	handle HandleFunc
	logger *logrus.Entry

	conn    *amqp.Connection
	channel *amqp.Channel
	wg      sync.WaitGroup
}

func NewConsumer(cfg config.RabbitMQConfig, handle HandleFunc, logger *logrus.Logger) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if handle == nil {
		return nil, errors.New("handler is required")
	}
	return &Consumer{
		cfg:    cfg,
		handle: handle,
		logger: logger.WithField("component", "consumer"),
	}, nil
}

// Start establishes the AMQP connection and begins consuming the exchange.
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	c.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		c.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.channel = ch

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		c.Close()
		return fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		c.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", c.cfg.Exchange, false, nil); err != nil {
		c.Close()
		return fmt.Errorf("bind queue %s to %s: %w", queue.Name, c.cfg.Exchange, err)
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		c.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		c.Close()
		return fmt.Errorf("start consume: %w", err)
	}

	c.wg.Add(1)
	go c.consumeLoop(ctx, deliveries)

	c.logger.WithField("exchange", c.cfg.Exchange).Info("rabbitmq consumer started")
	return nil
}

// Close stops consumption and releases the connection.
func (c *Consumer) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.wg.Wait()
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			update, err := ingestion.DecodeUpdate(delivery.Body)
			if err != nil {
				c.logger.WithError(err).Warn("dropping malformed update frame")
				_ = delivery.Nack(false, false)
				continue
			}
			c.handle(update)
			if err := delivery.Ack(false); err != nil {
				c.logger.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}
