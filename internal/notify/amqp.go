package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPDispatcher publishes notifications to a topic exchange. Routing keys
// are "notification.<type>" and "email.<template>".
type AMQPDispatcher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

func NewAMQPDispatcher(url, exchange string, log *zap.Logger) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPDispatcher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		log:      log.With(zap.String("dispatcher", "amqp")),
	}, nil
}

func (d *AMQPDispatcher) Notify(ctx context.Context, n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := d.publish(ctx, "notification."+string(n.Type), n); err != nil {
		d.log.Warn("Failed to publish notification",
			zap.Error(err),
			zap.String("user_id", n.UserID.String()),
			zap.String("type", string(n.Type)),
		)
	}
}

func (d *AMQPDispatcher) SendEmail(ctx context.Context, e Email) {
	if err := d.publish(ctx, "email."+e.Template, e); err != nil {
		d.log.Warn("Failed to publish email",
			zap.Error(err),
			zap.String("recipient", e.Recipient),
			zap.String("template", e.Template),
		)
	}
}

// amqp channels are not safe for concurrent publishing.
func (d *AMQPDispatcher) publish(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ch.PublishWithContext(ctx, d.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         b,
	})
}

func (d *AMQPDispatcher) Close() error {
	if d.ch != nil {
		_ = d.ch.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
