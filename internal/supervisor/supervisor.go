// Package supervisor owns the full set of guild connections: it starts them
// concurrently, schedules reconnects with backoff when sessions drop, and
// multiplexes classified records and lifecycle events into one ordered
// upward stream that main routes to the correlator, the fan-out engine and
// the external bridge.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/guildlink/bridge-app/internal/classify"
	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/guild"
)

// ErrNoGuilds is returned by StartAll when no guild is enabled.
var ErrNoGuilds = errors.New("supervisor: no enabled guilds")

// ErrStartupFailed is returned by StartAll when every initial connection
// attempt failed.
var ErrStartupFailed = errors.New("supervisor: all initial connections failed")

// ErrUnknownGuild is returned for operations addressing a guild the
// supervisor does not manage.
var ErrUnknownGuild = errors.New("supervisor: unknown guild")

// Event is one item of the upward stream. Exactly one of Record and Conn is
// set: Record for classified game text, Conn for connection lifecycle.
type Event struct {
	GuildID string
	Record  classify.Record
	Conn    *guild.Event
}

// Factory builds the connection for one guild. It lets main wire the dialer,
// strategy and classifier while tests substitute fakes.
type Factory func(g *config.Guild) *guild.Connection

// Supervisor manages the connection map and reconnect timers. Both are
// exclusively owned here; other components go through its methods.
type Supervisor struct {
	cfg     *config.Config
	mu      sync.Mutex
	conns   map[string]*guild.Connection
	timers  map[string]*time.Timer
	events  chan Event
	done    chan struct{}
	stopped bool
}

// New builds a supervisor with one connection per enabled guild and wires
// the upward callbacks.
func New(cfg *config.Config, factory Factory) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		conns:  make(map[string]*guild.Connection),
		timers: make(map[string]*time.Timer),
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	for _, g := range cfg.EnabledGuilds() {
		conn := factory(g)
		guildID := g.ID
		conn.OnRecord(func(rec classify.Record) {
			s.publish(Event{GuildID: guildID, Record: rec})
		})
		conn.OnEvent(func(ev guild.Event) {
			s.publish(Event{GuildID: guildID, Conn: &ev})
			s.handleConnEvent(ev)
		})
		s.conns[guildID] = conn
	}
	return s
}

// Events returns the upward stream. The channel is never closed; consumers
// select on Done to stop.
func (s *Supervisor) Events() <-chan Event { return s.events }

// Done is closed by StopAll.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

func (s *Supervisor) publish(ev Event) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Supervisor) handleConnEvent(ev guild.Event) {
	switch ev.Type {
	case guild.EventDisconnected, guild.EventKicked:
		s.ScheduleReconnect(ev.GuildID)
	case guild.EventFailed:
		log.Printf("[supervisor] guild=%s terminally failed after %d attempts", ev.GuildID, ev.Attempt)
	}
}

// StartAll launches every connection concurrently. Guilds that fail their
// first attempt are handed to the reconnect scheduler; if not a single
// guild connects, startup as a whole fails.
func (s *Supervisor) StartAll(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*guild.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if len(conns) == 0 {
		return ErrNoGuilds
	}

	var wg sync.WaitGroup
	var countMu sync.Mutex
	success := 0
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *guild.Connection) {
			defer wg.Done()
			if err := conn.Connect(ctx); err != nil {
				log.Printf("[supervisor] guild=%s initial connect failed: %v", conn.GuildID(), err)
				s.ScheduleReconnect(conn.GuildID())
				return
			}
			countMu.Lock()
			success++
			countMu.Unlock()
		}(conn)
	}
	wg.Wait()

	if success == 0 {
		return fmt.Errorf("%w (%d guilds)", ErrStartupFailed, len(conns))
	}
	log.Printf("[supervisor] started: %d/%d guilds connected", success, len(conns))
	return nil
}

// StopAll cancels all reconnect timers first, then disconnects every
// session. After StopAll no further events are published.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	conns := make([]*guild.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	close(s.done)
	for _, conn := range conns {
		conn.Disconnect(true)
	}
	log.Printf("[supervisor] stopped")
}

// ScheduleReconnect arms (or re-arms) the reconnect timer for a guild,
// respecting its reconnection policy. A prior pending timer is replaced.
func (s *Supervisor) ScheduleReconnect(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	conn := s.conns[guildID]
	if conn == nil {
		return
	}
	if !conn.Config().Account.Reconnection.Enabled {
		log.Printf("[supervisor] guild=%s reconnection disabled, staying down", guildID)
		return
	}
	if conn.State() == guild.StateFailed {
		return
	}
	if t := s.timers[guildID]; t != nil {
		t.Stop()
	}
	delay := conn.CalcDelay()
	s.timers[guildID] = time.AfterFunc(delay, func() { s.reconnect(guildID) })
	log.Printf("[supervisor] guild=%s reconnect scheduled in %s (attempt %d)",
		guildID, delay.Round(time.Millisecond), conn.Attempts()+1)
}

func (s *Supervisor) reconnect(guildID string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, guildID)
	conn := s.conns[guildID]
	s.mu.Unlock()
	if conn == nil {
		return
	}

	err := conn.Reconnect(context.Background())
	if err == nil {
		return
	}
	if errors.Is(err, guild.ErrMaxAttempts) {
		// Terminal; the connection already emitted the failed event.
		return
	}
	s.ScheduleReconnect(guildID)
}

func (s *Supervisor) connection(guildID string) (*guild.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.conns[guildID]
	if conn == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGuild, guildID)
	}
	return conn, nil
}

// IsConnected reports whether the guild's session is live.
func (s *Supervisor) IsConnected(guildID string) bool {
	conn, err := s.connection(guildID)
	return err == nil && conn.IsConnected()
}

// State returns the lifecycle state for a guild.
func (s *Supervisor) State(guildID string) (guild.State, error) {
	conn, err := s.connection(guildID)
	if err != nil {
		return guild.StateDisconnected, err
	}
	return conn.State(), nil
}

// SendMessage relays text into a guild's chat channel.
func (s *Supervisor) SendMessage(guildID, text string) error {
	conn, err := s.connection(guildID)
	if err != nil {
		return err
	}
	if !conn.IsConnected() {
		return guild.ErrNotConnected
	}
	return conn.SendMessage(text)
}

// SendOfficerMessage relays text into a guild's officer channel.
func (s *Supervisor) SendOfficerMessage(guildID, text string) error {
	conn, err := s.connection(guildID)
	if err != nil {
		return err
	}
	if !conn.IsConnected() {
		return guild.ErrNotConnected
	}
	return conn.SendOfficerMessage(text)
}

// ExecuteCommand sends an allow-listed slash command on a guild's session.
func (s *Supervisor) ExecuteCommand(guildID, command string) error {
	conn, err := s.connection(guildID)
	if err != nil {
		return err
	}
	if !conn.IsConnected() {
		return guild.ErrNotConnected
	}
	return conn.ExecuteCommand(command)
}
