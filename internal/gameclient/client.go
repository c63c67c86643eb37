package gameclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// SessionConfig carries everything needed to establish and authenticate one
// game-server session.
type SessionConfig struct {
	Host           string
	Port           int
	Username       string
	AuthMethod     string
	Version        string
	SessionPath    string
	CachePath      string
	ProfilesFolder string
}

// Session is one live game-server connection. Implementations deliver
// events in arrival order on Events and close the channel when the session
// ends; after that, Chat returns an error.
type Session interface {
	// Chat sends a chat line (or slash command) to the server.
	Chat(text string) error
	// Quit announces a clean logout and closes the session.
	Quit() error
	// Events returns the session's ordered event stream.
	Events() <-chan Event
}

// DialFunc creates a session. Connection owners take a DialFunc so tests can
// substitute fake sessions.
type DialFunc func(ctx context.Context, cfg SessionConfig) (Session, error)

// session is the gobwas/ws-backed Session.
type session struct {
	conn      net.Conn
	mu        sync.Mutex // guards writes
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the game server's chat endpoint and sends the auth
// envelope. The returned session is reading in the background immediately;
// the caller should wait for the spawn event before treating it as live.
func Dial(ctx context.Context, cfg SessionConfig) (Session, error) {
	url := fmt.Sprintf("ws://%s:%d/", cfg.Host, cfg.Port)
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("gameclient: dial %s: %w", url, err)
	}

	s := &session{
		conn:   conn,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	auth := envelope{
		Type:           TypeAuth,
		Username:       cfg.Username,
		AuthMethod:     cfg.AuthMethod,
		Version:        cfg.Version,
		SessionPath:    cfg.SessionPath,
		CachePath:      cfg.CachePath,
		ProfilesFolder: cfg.ProfilesFolder,
	}
	if err := s.write(auth); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gameclient: auth: %w", err)
	}

	go s.readLoop()
	return s, nil
}

func (s *session) write(env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return wsutil.WriteClientMessage(s.conn, ws.OpText, data)
}

// Chat sends a chat envelope. Returns an error once the session has ended.
func (s *session) Chat(text string) error {
	select {
	case <-s.done:
		return fmt.Errorf("gameclient: session closed")
	default:
	}
	return s.write(envelope{Type: TypeChat, Text: text})
}

// Quit sends a best-effort quit envelope and closes the connection.
func (s *session) Quit() error {
	_ = s.write(envelope{Type: TypeQuit})
	return s.close()
}

func (s *session) Events() <-chan Event {
	return s.events
}

func (s *session) close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// readLoop reads frames until the connection drops, forwarding decoded
// events in order. A read error after an intentional close is silent; any
// other read error surfaces as a final end event. The events channel is
// closed on exit so owners observe session end by channel closure.
func (s *session) readLoop() {
	defer close(s.events)
	for {
		data, err := wsutil.ReadServerText(s.conn)
		if err != nil {
			select {
			case <-s.done:
			default:
				s.events <- Event{Type: TypeEnd, Reason: err.Error()}
				s.close()
			}
			return
		}

		ev, err := decodeEvent(data)
		if err != nil {
			// Undecodable frame: drop it, the stream itself is still good.
			continue
		}
		s.events <- ev

		if ev.Type == TypeEnd || ev.Type == TypeKicked {
			s.close()
			return
		}
	}
}
