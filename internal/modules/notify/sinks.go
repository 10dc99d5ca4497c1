// README: Notification transports: RabbitMQ topic exchange, FCM push and log.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/apex/log"
	"github.com/rabbitmq/amqp091-go"

	"routedesk/internal/types"
)

// Channel is the publishing half of an AMQP channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPSink publishes every event to a topic exchange with the event kind as
// routing key.
type AMQPSink struct {
	ch       Channel
	exchange string
}

func NewAMQPSink(ch Channel, exchange string) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: exchange}
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Deliver(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.ch.PublishWithContext(ctx,
		s.exchange,
		string(e.Kind),
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Transient,
			Timestamp:    e.At,
			Type:         string(e.Kind),
		})
}

// Messenger sends one FCM message; *messaging.Client implements it.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// TokenLookup resolves a driver's push device token.
type TokenLookup func(ctx context.Context, driverID types.ID) (string, error)

var ErrNoDeviceToken = errors.New("driver has no device token")

// PushSink pushes driver-addressed events to the driver's device. Events for
// admins are skipped.
type PushSink struct {
	client Messenger
	lookup TokenLookup
}

func NewPushSink(client Messenger, lookup TokenLookup) *PushSink {
	return &PushSink{client: client, lookup: lookup}
}

func (s *PushSink) Name() string { return "fcm" }

func (s *PushSink) Deliver(ctx context.Context, e Event) error {
	if e.Audience != AudienceDriver || e.DriverID == "" {
		return nil
	}
	token, err := s.lookup(ctx, e.DriverID)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNoDeviceToken
	}
	data := map[string]string{"kind": string(e.Kind)}
	if len(e.RouteIDs) > 0 {
		data["route_id"] = string(e.RouteIDs[0])
	}
	_, err = s.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: e.Title, Body: e.Message},
		Data:         data,
	})
	return err
}

type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Deliver(_ context.Context, e Event) error {
	log.WithFields(log.Fields{
		"kind":     e.Kind,
		"audience": e.Audience,
		"driver":   e.DriverID,
		"routes":   len(e.RouteIDs),
		"at":       e.At.Format(time.RFC3339),
	}).Info(e.Title)
	return nil
}
