package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/notify"
)

// MockChannel records publishings using `testify/mock`.
type MockChannel struct{ mock.Mock }

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func publisher(ch *MockChannel) *notify.Publisher {
	return &notify.Publisher{Channel: ch, Clock: clock.Fixed{T: fixedNow}}
}

func TestPublish_SetsDeadlineAndEnvelope(t *testing.T) {
	ch := new(MockChannel)
	ch.On("PublishWithContext", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), "x", "k", false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
		return p.ContentType == config.MimeJSON &&
			p.DeliveryMode == amqp.Persistent &&
			p.MessageId == "m-1" &&
			p.Timestamp.Equal(fixedNow) &&
			string(p.Body) == `{"a":1}`
	})).Return(nil).Once()

	err := publisher(ch).Publish(context.Background(), "x", "k", "m-1", map[string]int{"a": 1})

	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestPublish_MarshalFailure(t *testing.T) {
	ch := new(MockChannel)
	err := publisher(ch).Publish(context.Background(), "x", "k", "m-1", func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrMarshal)
	ch.AssertNotCalled(t, "PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRealtime_RoutesByTenantAndEvent(t *testing.T) {
	ch := new(MockChannel)
	var got amqp.Publishing
	ch.On("PublishWithContext", mock.Anything, config.ExchangeRealtime, "tenant.3.birthday-events", false, false, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(5).(amqp.Publishing) }).
		Return(nil)

	rt := &notify.Realtime{Publisher: publisher(ch)}
	require.NoError(t, rt.PublishTenantEvent(context.Background(), 3, config.EventBirthdays, map[string]int{"contactsNotified": 2}))

	var ev notify.TenantEvent
	require.NoError(t, json.Unmarshal(got.Body, &ev))
	assert.Equal(t, int64(3), ev.CompanyID)
	assert.Equal(t, config.EventBirthdays, ev.Event)
	assert.Equal(t, map[string]any{"contactsNotified": float64(2)}, ev.Payload)
	assert.NotEmpty(t, got.MessageId)
}

func TestSender_Send(t *testing.T) {
	ch := new(MockChannel)
	var got amqp.Publishing
	ch.On("PublishWithContext", mock.Anything, config.ExchangeOutbound, config.RoutingKeyOutbound, false, false, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(5).(amqp.Publishing) }).
		Return(nil)

	s := &notify.Sender{Publisher: publisher(ch)}
	channel := model.Channel{ID: 1, CompanyID: 3, Status: config.ChannelStatusConnected}
	ticket := model.Ticket{ID: "t-1", CompanyID: 3, ContactID: 42, ChannelID: 1}

	id, err := s.Send(context.Background(), channel, ticket, "Happy birthday")
	require.NoError(t, err)
	assert.Equal(t, got.MessageId, id)

	var msg notify.OutboundMessage
	require.NoError(t, json.Unmarshal(got.Body, &msg))
	assert.Equal(t, notify.OutboundMessage{
		DeliveryID: id,
		CompanyID:  3,
		ChannelID:  1,
		TicketID:   "t-1",
		ContactID:  42,
		Body:       "Happy birthday",
		CreatedAt:  fixedNow,
	}, msg)
}

func TestSender_Failures(t *testing.T) {
	connected := model.Channel{ID: 1, Status: config.ChannelStatusConnected}

	t.Run("Disconnected", func(t *testing.T) {
		s := &notify.Sender{Publisher: publisher(new(MockChannel))}
		_, err := s.Send(context.Background(), model.Channel{ID: 1, Status: "DISCONNECTED"}, model.Ticket{}, "hi")
		assert.ErrorIs(t, err, apperror.ErrChannelUnavailable)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		s := &notify.Sender{Publisher: publisher(new(MockChannel))}
		_, err := s.Send(context.Background(), connected, model.Ticket{}, "")
		assert.ErrorIs(t, err, apperror.ErrRejected)
	})

	t.Run("BrokerDown", func(t *testing.T) {
		ch := new(MockChannel)
		ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("channel/connection is not open"))
		s := &notify.Sender{Publisher: publisher(ch)}

		_, err := s.Send(context.Background(), connected, model.Ticket{}, "hi")
		assert.ErrorIs(t, err, apperror.ErrTransient)
		assert.True(t, apperror.Retryable(err))
	})
}

func TestDial_RequiresURL(t *testing.T) {
	_, err := notify.Dial("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrAMQPMissing)
}
