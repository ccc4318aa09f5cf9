package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClaimFiledPublisher publishes ClaimFiled events to the claim_filed_events
// queue. Messages are persistent, so delivery to consumers is at-least-once
// and observers must tolerate duplicates. Counters are atomic; publishes run
// on concurrent request goroutines.
type ClaimFiledPublisher struct {
	conn              *RabbitMQConnection
	messagesPublished atomic.Int64
	messagesFailed    atomic.Int64
	lastPublishUnix   atomic.Int64
}

// PublisherStats is a point-in-time snapshot of publish activity.
type PublisherStats struct {
	Published   int64
	Failed      int64
	LastPublish time.Time
}

// NewClaimFiledPublisher creates a new ClaimFiled event publisher
func NewClaimFiledPublisher(conn *RabbitMQConnection) *ClaimFiledPublisher {
	p := &ClaimFiledPublisher{conn: conn}
	p.lastPublishUnix.Store(time.Now().Unix())
	return p
}

// Stats returns the publish counters.
func (p *ClaimFiledPublisher) Stats() PublisherStats {
	return PublisherStats{
		Published:   p.messagesPublished.Load(),
		Failed:      p.messagesFailed.Load(),
		LastPublish: time.Unix(p.lastPublishUnix.Load(), 0),
	}
}

// PublishClaimFiled publishes a ClaimFiled event to the claim_filed_events queue
func (p *ClaimFiledPublisher) PublishClaimFiled(ctx context.Context, event ClaimFiledEvent) error {
	if p.conn == nil || p.conn.Channel == nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("rabbitmq connection is not available")
	}

	// Ensure the queue exists
	_, err := p.conn.Channel.QueueDeclare(
		ClaimFiledQueue, // queue name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to marshal claim filed event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",              // exchange
		ClaimFiledQueue, // routing key (queue name)
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to publish claim filed event: %w", err)
	}

	p.messagesPublished.Add(1)
	p.lastPublishUnix.Store(time.Now().Unix())

	slog.Info("ClaimFiled event published",
		"queue", ClaimFiledQueue,
		"claim_id", event.ClaimID,
		"policy_id", event.PolicyID,
		"policyholder", event.Policyholder,
	)

	return nil
}
