// README: RabbitMQ connection with startup retry and topic-exchange declaration.
package infra

import (
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/rabbitmq/amqp091-go"
)

const (
	amqpDialAttempts = 10
	amqpDialDelay    = 3 * time.Second
)

// DialAMQP connects, opens a channel and declares exchange as a durable topic
// exchange. It retries while the broker is starting.
func DialAMQP(url, exchange string) (*amqp091.Connection, *amqp091.Channel, error) {
	var conn *amqp091.Connection
	var err error
	for i := 0; i < amqpDialAttempts; i++ {
		conn, err = amqp091.Dial(url)
		if err == nil {
			break
		}
		log.Warnf("RabbitMQ not ready, retrying... (%d/%d)", i+1, amqpDialAttempts)
		time.Sleep(amqpDialDelay)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}
