package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"podsearch/internal/domain"
	"podsearch/internal/metrics"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

func declare(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// ItemMessage is the event emitted for every stored podcast or episode.
type ItemMessage struct {
	Action    string            `json:"action"`
	Kind      domain.Kind       `json:"kind"`
	Item      domain.ResultItem `json:"item"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewItemMessage(item *domain.CatalogItem, isNew bool, now time.Time) ItemMessage {
	action := ActionUpdate
	if isNew {
		action = ActionCreate
	}
	return ItemMessage{
		Action:    action,
		Kind:      item.Kind,
		Item:      domain.NewResultItem(*item),
		Timestamp: now.UTC(),
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, item *domain.CatalogItem, isNew bool) error {
	msg := NewItemMessage(item, isNew, time.Now())

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         string(item.Kind),
			Body:         body,
			Timestamp:    msg.Timestamp,
		},
	)
	if err != nil {
		metrics.PublishedEventsTotal.WithLabelValues(msg.Action, "error").Inc()
		return fmt.Errorf("publish message: %w", err)
	}
	metrics.PublishedEventsTotal.WithLabelValues(msg.Action, "ok").Inc()

	r.logger.Debug("published item",
		"kind", item.Kind,
		"track_id", item.TrackID,
		"action", msg.Action,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
