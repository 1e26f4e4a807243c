package broker

import (
	"context"
	"errors"
	"fmt"

	"marketpipe/internal/config"
	domain "marketpipe/internal/domain/entity/marketdata"
	"marketpipe/internal/domain/interfaces"
	"marketpipe/internal/ingestion"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

var _ interfaces.UpdatePublisher = (*Publisher)(nil)

// Publisher fans market updates out to a RabbitMQ exchange in the
// fixed-width binary encoding.
type Publisher struct {
	cfg    config.RabbitMQConfig
	logger *logrus.Entry

	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewPublisher(cfg config.RabbitMQConfig, logger *logrus.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return &Publisher{
		cfg:     cfg,
		logger:  logger.WithField("component", "publisher"),
		conn:    conn,
		channel: channel,
	}, nil
}

func (p *Publisher) PublishUpdate(ctx context.Context, update *domain.MarketUpdate) error {
	if update == nil {
		return errors.New("update is nil")
	}
	body, err := ingestion.EncodeUpdate(update)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	err = p.channel.PublishWithContext(ctx, p.cfg.Exchange, "", false, false, amqp.Publishing{
		ContentType: "application/octet-stream",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.cfg.Exchange, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
		p.channel = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
