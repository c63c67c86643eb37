// Package messaging provides a NATS client wrapper for the external control
// plane. Chat, events and guild status stream out on per-guild subjects;
// moderation commands come in on a shared request subject and their results
// go back on per-request subjects.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used by the bridge.
const (
	SubjectChat          = "guildlink.chat"    // + .<guild_id>
	SubjectOfficer       = "guildlink.officer" // + .<guild_id>
	SubjectEvent         = "guildlink.event"   // + .<guild_id>
	SubjectStatus        = "guildlink.status"  // + .<guild_id>
	SubjectCommandReq    = "guildlink.command.request"
	SubjectCommandResult = "guildlink.command.result" // + .<request_id>
)

// Client wraps the NATS connection with helper methods for the bridge's
// pub/sub surface.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "guildlink-bridge",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Connect dials NATS with the given config and returns a ready client.
func Connect(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *Client) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// PublishChat publishes a guild chat card to guildlink.chat.<guildID>.
func (c *Client) PublishChat(guildID string, data []byte) error {
	return c.Publish(SubjectChat+"."+guildID, data)
}

// PublishOfficer publishes an officer chat card to guildlink.officer.<guildID>.
func (c *Client) PublishOfficer(guildID string, data []byte) error {
	return c.Publish(SubjectOfficer+"."+guildID, data)
}

// PublishEvent publishes an event card to guildlink.event.<guildID>.
func (c *Client) PublishEvent(guildID string, data []byte) error {
	return c.Publish(SubjectEvent+"."+guildID, data)
}

// PublishStatus publishes a status card to guildlink.status.<guildID>.
func (c *Client) PublishStatus(guildID string, data []byte) error {
	return c.Publish(SubjectStatus+"."+guildID, data)
}

// SubscribeCommandRequest subscribes to moderation command requests.
func (c *Client) SubscribeCommandRequest(handler func(data []byte)) error {
	return c.Subscribe(SubjectCommandReq, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishCommandResult publishes a command result for a specific request.
func (c *Client) PublishCommandResult(requestID string, data []byte) error {
	return c.Publish(SubjectCommandResult+"."+requestID, data)
}

// SubscribeCommandResult subscribes to the result subject for a specific
// request. Command issuers such as cmd/guildctl use it to await their
// result card.
func (c *Client) SubscribeCommandResult(requestID string, handler func(data []byte)) error {
	subject := SubjectCommandResult + "." + requestID
	return c.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeCommandResult drops the per-request result subscription.
func (c *Client) UnsubscribeCommandResult(requestID string) error {
	return c.unsubscribe(SubjectCommandResult + "." + requestID)
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

func (c *Client) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
