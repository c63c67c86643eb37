// Package guild owns a single game-server session for one guild: the
// connect/disconnect state machine, bounded retry accounting, outbound chat
// with length truncation, and the allow-list gate for executed commands.
// Classified records and lifecycle events are handed upward through
// callbacks; the supervisor schedules reconnects.
package guild

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/guildlink/bridge-app/internal/classify"
	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/gameclient"
	"github.com/guildlink/bridge-app/internal/metrics"
	"github.com/guildlink/bridge-app/internal/strategy"
)

// SpawnTimeout bounds the wait for the server's spawn signal after dial.
// Variable so tests can shrink it.
var SpawnTimeout = 60 * time.Second

const (
	// MaxAttempts bounds contiguous failed connection attempts; exceeding it
	// is terminal for the run and surfaces as ErrMaxAttempts.
	MaxAttempts = 5

	// maxDelayMultiplier caps the linear backoff growth.
	maxDelayMultiplier = 5

	// jitterMax is the random spread added to every reconnect delay.
	jitterMax = 5 * time.Second

	// lowHealthThreshold triggers a warning; a bot this low in-world is
	// about to be killed and respawned, which often drops the session.
	lowHealthThreshold = 10
)

var (
	ErrNotConnected      = errors.New("guild: not connected")
	ErrAlreadyConnected  = errors.New("guild: already connected")
	ErrCommandNotAllowed = errors.New("guild: command not in allow-list")
	ErrMaxAttempts       = errors.New("guild: max connection attempts exceeded")
	ErrSpawnTimeout      = errors.New("guild: timed out waiting for spawn")
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventType labels connection lifecycle events.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventKicked       EventType = "kicked"
	EventError        EventType = "error"
	EventFailed       EventType = "failed"
)

// Event is one lifecycle occurrence, delivered on the event callback.
type Event struct {
	GuildID string
	Type    EventType
	Reason  string
	Err     error
	Attempt int
}

// RecordHandler receives classified records in arrival order.
type RecordHandler func(classify.Record)

// EventHandler receives lifecycle events.
type EventHandler func(Event)

// Connection is the owner of one guild's session. All state mutation happens
// on the goroutine calling Connect/Disconnect or on the session pump; both
// synchronize on mu.
type Connection struct {
	cfg        *config.Guild
	dial       gameclient.DialFunc
	strat      strategy.Strategy
	classifier *classify.Classifier

	onRecord RecordHandler
	onEvent  EventHandler

	mu             sync.Mutex
	state          State
	session        gameclient.Session
	attempts       int
	lastConnected  time.Time
	lastDisconnect time.Time
}

// NewConnection wires a connection for one guild. Handlers must be set with
// OnRecord/OnEvent before Connect.
func NewConnection(cfg *config.Guild, dial gameclient.DialFunc, strat strategy.Strategy, classifier *classify.Classifier) *Connection {
	return &Connection{
		cfg:        cfg,
		dial:       dial,
		strat:      strat,
		classifier: classifier,
	}
}

// OnRecord sets the classified-record callback.
func (c *Connection) OnRecord(h RecordHandler) { c.onRecord = h }

// OnEvent sets the lifecycle-event callback.
func (c *Connection) OnEvent(h EventHandler) { c.onEvent = h }

// GuildID returns the owning guild's ID.
func (c *Connection) GuildID() string { return c.cfg.ID }

// Config returns the guild configuration this connection serves.
func (c *Connection) Config() *config.Guild { return c.cfg }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the contiguous failed-attempt count.
func (c *Connection) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// IsConnected reports whether the session is live.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect dials a session, waits for spawn under SpawnTimeout, runs the
// strategy's post-connect script, and starts pumping inbound text. The
// attempt counter resets on success; on failure it grows, and once it
// exceeds MaxAttempts the returned error wraps ErrMaxAttempts.
func (c *Connection) Connect(ctx context.Context) error {
	return c.connect(ctx, false)
}

// Reconnect tears the current session down silently and connects again,
// running the strategy's reconnect hook instead of the connect hook. The
// backoff delay between attempts is the scheduler's job (see CalcDelay).
func (c *Connection) Reconnect(ctx context.Context) error {
	c.Disconnect(true)
	c.mu.Lock()
	c.state = StateReconnecting
	c.mu.Unlock()
	metrics.ReconnectsTotal.WithLabelValues(c.cfg.ID).Inc()
	return c.connect(ctx, true)
}

func (c *Connection) connect(ctx context.Context, reconnecting bool) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	sess, err := c.dial(ctx, c.sessionConfig())
	if err != nil {
		return c.connectFailed(fmt.Errorf("guild %s: dial: %w", c.cfg.ID, err))
	}

	if err := c.awaitSpawn(ctx, sess); err != nil {
		_ = sess.Quit()
		return c.connectFailed(err)
	}

	c.mu.Lock()
	c.state = StateConnected
	c.session = sess
	c.attempts = 0
	c.lastConnected = time.Now()
	c.mu.Unlock()
	metrics.ConnectedGuilds.Inc()

	go c.pump(sess)

	// Strategy failures are logged inside the strategy and never invalidate
	// the connection.
	if reconnecting {
		_ = c.strat.OnReconnect(ctx, sess, c.cfg)
	} else {
		_ = c.strat.OnConnect(ctx, sess, c.cfg)
	}

	log.Printf("[guild] %s connected as %s", c.cfg.ID, c.cfg.Account.Username)
	c.emit(Event{GuildID: c.cfg.ID, Type: EventConnected})
	return nil
}

func (c *Connection) connectFailed(err error) error {
	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	if attempt >= MaxAttempts {
		c.state = StateFailed
	} else {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	log.Printf("[guild] %s connect attempt %d failed: %v", c.cfg.ID, attempt, err)
	if attempt >= MaxAttempts {
		c.emit(Event{GuildID: c.cfg.ID, Type: EventFailed, Err: err, Attempt: attempt})
		return fmt.Errorf("%w: %v", ErrMaxAttempts, err)
	}
	return err
}

// awaitSpawn consumes session events until the spawn signal. Messages seen
// before spawn are login screen noise and are dropped.
func (c *Connection) awaitSpawn(ctx context.Context, sess gameclient.Session) error {
	timer := time.NewTimer(SpawnTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrSpawnTimeout
		case ev, ok := <-sess.Events():
			if !ok {
				return fmt.Errorf("guild %s: session ended before spawn", c.cfg.ID)
			}
			switch ev.Type {
			case gameclient.TypeSpawn:
				return nil
			case gameclient.TypeEnd:
				return fmt.Errorf("guild %s: session ended before spawn: %s", c.cfg.ID, ev.Reason)
			case gameclient.TypeKicked:
				return fmt.Errorf("guild %s: kicked before spawn: %s", c.cfg.ID, ev.Reason)
			case gameclient.TypeError:
				return fmt.Errorf("guild %s: before spawn: %w", c.cfg.ID, ev.Err)
			}
		}
	}
}

// pump forwards session events upward until the session ends or is
// detached by Disconnect. Inbound classification runs inline here, so per
// guild the record order equals arrival order.
func (c *Connection) pump(sess gameclient.Session) {
	for ev := range sess.Events() {
		if !c.owns(sess) {
			return
		}
		switch ev.Type {
		case gameclient.TypeMessage:
			if !c.strat.FilterInbound(ev.Text, c.cfg) {
				continue
			}
			rec := c.classifier.Classify(ev.Text, c.cfg)
			if c.onRecord != nil {
				c.onRecord(rec)
			}
		case gameclient.TypeHealth:
			if ev.Health < lowHealthThreshold {
				log.Printf("[guild] %s bot health low (%.1f), session may drop", c.cfg.ID, ev.Health)
			}
		case gameclient.TypeError:
			log.Printf("[guild] %s session error: %v", c.cfg.ID, ev.Err)
			c.emit(Event{GuildID: c.cfg.ID, Type: EventError, Err: ev.Err})
		case gameclient.TypeKicked:
			c.detach(sess)
			c.emit(Event{GuildID: c.cfg.ID, Type: EventKicked, Reason: ev.Reason})
			return
		case gameclient.TypeEnd:
			c.detach(sess)
			c.emit(Event{GuildID: c.cfg.ID, Type: EventDisconnected, Reason: ev.Reason})
			return
		}
	}
	// Stream closed without a terminal event.
	if c.owns(sess) {
		c.detach(sess)
		c.emit(Event{GuildID: c.cfg.ID, Type: EventDisconnected, Reason: "stream closed"})
	}
}

func (c *Connection) owns(sess gameclient.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == sess
}

// detach clears the session so the pump stops delivering, without emitting.
func (c *Connection) detach(sess gameclient.Session) {
	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.state = StateDisconnected
	c.lastDisconnect = time.Now()
	c.mu.Unlock()
	metrics.ConnectedGuilds.Dec()
}

// Disconnect detaches the pump and closes the session. When silent, no
// disconnect event is emitted (used by Reconnect and StopAll).
func (c *Connection) Disconnect(silent bool) {
	c.mu.Lock()
	sess := c.session
	wasConnected := c.state == StateConnected
	c.session = nil
	c.state = StateDisconnected
	if wasConnected {
		c.lastDisconnect = time.Now()
	}
	c.mu.Unlock()

	if sess != nil {
		_ = sess.Quit()
		if wasConnected {
			metrics.ConnectedGuilds.Dec()
		}
	}
	if !silent && wasConnected {
		c.emit(Event{GuildID: c.cfg.ID, Type: EventDisconnected, Reason: "disconnect requested"})
	}
}

// CalcDelay returns the next reconnect delay:
// baseDelay · min(attempt, 5) + rand[0, 5s).
func (c *Connection) CalcDelay() time.Duration {
	c.mu.Lock()
	mult := c.attempts
	c.mu.Unlock()
	if mult < 1 {
		mult = 1
	}
	if mult > maxDelayMultiplier {
		mult = maxDelayMultiplier
	}
	base := c.cfg.Account.Reconnection.RetryDelay()
	jitter := time.Duration(rand.Int63n(int64(jitterMax)))
	return base*time.Duration(mult) + jitter
}

// SendMessage sends text to the guild chat channel, truncated to the
// guild's chat length limit.
func (c *Connection) SendMessage(text string) error {
	return c.sendChat("/gc ", text)
}

// SendOfficerMessage sends text to the officer channel.
func (c *Connection) SendOfficerMessage(text string) error {
	return c.sendChat("/oc ", text)
}

func (c *Connection) sendChat(prefix, text string) error {
	c.mu.Lock()
	sess := c.session
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || sess == nil {
		return ErrNotConnected
	}
	return sess.Chat(prefix + Truncate(text, c.cfg.Account.ChatLengthLimit))
}

// ExecuteCommand sends a slash command verbatim after checking its first
// token against the guild's allow-list.
func (c *Connection) ExecuteCommand(command string) error {
	command = strings.TrimSpace(command)
	if !c.cfg.CommandAllowed(command) {
		return fmt.Errorf("%w: %q", ErrCommandNotAllowed, command)
	}
	c.mu.Lock()
	sess := c.session
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || sess == nil {
		return ErrNotConnected
	}
	return sess.Chat(command)
}

func (c *Connection) sessionConfig() gameclient.SessionConfig {
	return gameclient.SessionConfig{
		Host:           c.cfg.Server.Host,
		Port:           c.cfg.Server.Port,
		Username:       c.cfg.Account.Username,
		AuthMethod:     c.cfg.Account.AuthMethod,
		Version:        c.cfg.Server.Version,
		SessionPath:    c.cfg.Account.SessionPath,
		CachePath:      c.cfg.Account.CachePath,
		ProfilesFolder: c.cfg.Account.ProfilesFolder,
	}
}

func (c *Connection) emit(ev Event) {
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

// Truncate bounds text to limit runes, replacing the overflow with "...".
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
