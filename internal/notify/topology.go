package notify

import (
	"fmt"

	"github.com/tartampluch/birthday-sync/internal/config"
)

// DeclareTopology declares the realtime and outbound topic exchanges and the
// durable outbound queue consumed by the messaging gateway.
func (c *Client) DeclareTopology() error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	for _, name := range []string{config.ExchangeRealtime, config.ExchangeOutbound} {
		if err := ch.ExchangeDeclare(name, config.ExchangeKindTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("%s: exchange %q: %w", config.ErrAMQPTopology, name, err)
		}
	}
	if _, err := ch.QueueDeclare(config.QueueOutbound, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: queue %q: %w", config.ErrAMQPTopology, config.QueueOutbound, err)
	}
	if err := ch.QueueBind(config.QueueOutbound, config.RoutingKeyOutbound, config.ExchangeOutbound, false, nil); err != nil {
		return fmt.Errorf("%s: bind %q: %w", config.ErrAMQPTopology, config.QueueOutbound, err)
	}

	c.log.Info(config.MsgTopologyReady,
		config.LogKeyExchange, config.ExchangeOutbound,
		config.LogKeyQueue, config.QueueOutbound,
	)
	return nil
}
