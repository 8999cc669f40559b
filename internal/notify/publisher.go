package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

var (
	_ port.RealtimeNotifier   = (*Realtime)(nil)
	_ port.NotificationSender = (*Sender)(nil)
)

// Channel is the publishing half of an AMQP channel. *Client implements it.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher marshals payloads to JSON and publishes them persistently.
type Publisher struct {
	Channel Channel
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Publish sends payload with messageID. A context without deadline gets
// the default publish timeout.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey, messageID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrMarshal, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.PublishTimeout)
		defer cancel()
	}

	err = p.Channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  config.MimeJSON,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    p.now(),
	})
	if err != nil {
		return fmt.Errorf("%s to %s/%s: %w", config.ErrAMQPPublish, exchange, routingKey, err)
	}

	p.logger().DebugContext(ctx, config.MsgPublished,
		config.LogKeyExchange, exchange,
		config.LogKeyRoutingKey, routingKey,
	)
	return nil
}

func (p *Publisher) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock.Now()
}

func (p *Publisher) logger() *slog.Logger {
	l := p.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompNotify)
}

// TenantEvent is the realtime envelope fanned out to a tenant's clients.
type TenantEvent struct {
	CompanyID int64  `json:"companyId"`
	Event     string `json:"event"`
	Payload   any    `json:"payload"`
}

// Realtime publishes tenant events on the realtime exchange, routed by
// tenant and event name.
type Realtime struct {
	Publisher *Publisher
}

func (r *Realtime) PublishTenantEvent(ctx context.Context, companyID int64, event string, payload any) error {
	key := fmt.Sprintf(config.RoutingKeyTenantFm, companyID, event)
	return r.Publisher.Publish(ctx, config.ExchangeRealtime, key, uuid.NewString(), TenantEvent{
		CompanyID: companyID,
		Event:     event,
		Payload:   payload,
	})
}

// OutboundMessage is the command consumed by the messaging gateway.
type OutboundMessage struct {
	DeliveryID string    `json:"deliveryId"`
	CompanyID  int64     `json:"companyId"`
	ChannelID  int64     `json:"channelId"`
	TicketID   string    `json:"ticketId"`
	ContactID  int64     `json:"contactId"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Sender hands messages to the gateway through the outbound queue. The
// delivery ID is assigned here and doubles as the AMQP message ID.
type Sender struct {
	Publisher *Publisher
}

func (s *Sender) Send(ctx context.Context, channel model.Channel, ticket model.Ticket, body string) (string, error) {
	if !channel.Connected() {
		return "", apperror.ChannelUnavailable(config.ErrChannelDown, nil)
	}
	if body == "" {
		return "", apperror.Rejected(config.ErrEmptyBody, nil)
	}

	msg := OutboundMessage{
		DeliveryID: uuid.NewString(),
		CompanyID:  ticket.CompanyID,
		ChannelID:  channel.ID,
		TicketID:   ticket.ID,
		ContactID:  ticket.ContactID,
		Body:       body,
		CreatedAt:  s.Publisher.now(),
	}
	if err := s.Publisher.Publish(ctx, config.ExchangeOutbound, config.RoutingKeyOutbound, msg.DeliveryID, msg); err != nil {
		return "", apperror.Transient(config.ErrAMQPPublish, err)
	}
	return msg.DeliveryID, nil
}
