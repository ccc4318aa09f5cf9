package event

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"insurance-ledger/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

const brokerHeartbeat = 10 * time.Second

// RabbitMQConnection bundles the AMQP connection with the channel the
// publishers share.
type RabbitMQConnection struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

// ConnectRabbitMQ dials the broker and opens the publishing channel.
func ConnectRabbitMQ(cfg config.RabbitMQConfig) (*RabbitMQConnection, error) {
	brokerURL := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Path:   "/",
	}

	conn, err := amqp.DialConfig(brokerURL.String(), amqp.Config{Heartbeat: brokerHeartbeat})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ at %s:%s: %w", cfg.Host, cfg.Port, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	slog.Info("connected to RabbitMQ", "host", cfg.Host, "port", cfg.Port)
	return &RabbitMQConnection{Connection: conn, Channel: ch}, nil
}

// Close shuts the channel before the connection so in-flight publishes are
// flushed. The first error wins; both halves are always attempted.
func (r *RabbitMQConnection) Close() error {
	var firstErr error
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			slog.Error("failed to close RabbitMQ channel", "error", err)
			firstErr = err
		}
	}
	if r.Connection != nil && !r.Connection.IsClosed() {
		if err := r.Connection.Close(); err != nil {
			slog.Error("failed to close RabbitMQ connection", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
