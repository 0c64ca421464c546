package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"exam-session-engine/internal/domain"
	"github.com/streadway/amqp"
)

// DefaultRoutingKey is used when no routing key is configured.
const DefaultRoutingKey = "exam.submission"

type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Notifier publishes submission confirmations to a topic exchange. A mailer
// consuming the exchange sends the actual email.
type Notifier struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	pub        publisher
	exchange   string
	routingKey string

	mu sync.Mutex
}

func NewNotifier(url, exchange, routingKey string) (*Notifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	n := newNotifier(ch, exchange, routingKey)
	n.conn = conn
	n.channel = ch
	return n, nil
}

func newNotifier(pub publisher, exchange, routingKey string) *Notifier {
	if routingKey == "" {
		routingKey = DefaultRoutingKey
	}
	return &Notifier{pub: pub, exchange: exchange, routingKey: routingKey}
}

type submissionMessage struct {
	Type    string                  `json:"type"`
	Payload domain.SubmissionNotice `json:"payload"`
}

func (n *Notifier) NotifySubmission(ctx context.Context, notice domain.SubmissionNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(submissionMessage{Type: n.routingKey, Payload: notice})
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	err = n.pub.Publish(
		n.exchange,
		n.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	log.Printf("notice published: quiz=%s student=%s", notice.QuizID, notice.StudentID)
	return nil
}

func (n *Notifier) Close() {
	if n.channel != nil {
		_ = n.channel.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}
