package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/guildlink/bridge-app/internal/classify"
	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/gameclient"
	"github.com/guildlink/bridge-app/internal/guild"
	"github.com/guildlink/bridge-app/internal/patterns"
	"github.com/guildlink/bridge-app/internal/strategy"
)

type fakeSession struct {
	mu     sync.Mutex
	sent   []string
	events chan gameclient.Event
}

func newFakeSession() *fakeSession {
	s := &fakeSession{events: make(chan gameclient.Event, 16)}
	s.events <- gameclient.Event{Type: gameclient.TypeSpawn}
	return s
}

func (f *fakeSession) Chat(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSession) Quit() error { return nil }

func (f *fakeSession) Events() <-chan gameclient.Event { return f.events }

// sessionHub hands a fresh fake session to each dial, per guild.
type sessionHub struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession // by username
	failFor  map[string]bool
}

func newSessionHub() *sessionHub {
	return &sessionHub{
		sessions: make(map[string]*fakeSession),
		failFor:  make(map[string]bool),
	}
}

func (h *sessionHub) dial(ctx context.Context, cfg gameclient.SessionConfig) (gameclient.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failFor[cfg.Username] {
		return nil, errors.New("connection refused")
	}
	s := newFakeSession()
	h.sessions[cfg.Username] = s
	return s, nil
}

func (h *sessionHub) session(username string) *fakeSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[username]
}

func twoGuildConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
[[guilds]]
id = "alpha"
name = "Alpha"
tag = "ALP"
enabled = true
[guilds.account]
username = "BotAlpha"
[guilds.account.reconnection]
enabled = true
retryDelay = 10
[guilds.server]
host = "alpha.example.net"
port = 25565

[[guilds]]
id = "beta"
name = "Beta"
tag = "BET"
enabled = true
[guilds.account]
username = "BotBeta"
[guilds.account.reconnection]
enabled = true
retryDelay = 10
[guilds.server]
host = "beta.example.net"
port = 25565
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func newTestSupervisor(t *testing.T, cfg *config.Config, hub *sessionHub) *Supervisor {
	t.Helper()
	classifier := classify.New(patterns.NewDefaultCatalog(), false)
	return New(cfg, func(g *config.Guild) *guild.Connection {
		return guild.NewConnection(g, hub.dial, strategy.ForFlavor("generic"), classifier)
	})
}

func TestStartAll_AllConnect(t *testing.T) {
	cfg := twoGuildConfig(t)
	hub := newSessionHub()
	s := newTestSupervisor(t, cfg, hub)
	defer s.StopAll()

	if err := s.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll error: %v", err)
	}
	for _, id := range []string{"alpha", "beta"} {
		if !s.IsConnected(id) {
			t.Errorf("guild %s not connected", id)
		}
	}

	// Two connected lifecycle events on the stream.
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-s.Events():
			if ev.Conn == nil || ev.Conn.Type != guild.EventConnected {
				t.Errorf("event %d = %+v, want connected", i, ev)
				continue
			}
			seen[ev.GuildID] = true
		case <-time.After(time.Second):
			t.Fatal("missing connected events")
		}
	}
	if !seen["alpha"] || !seen["beta"] {
		t.Errorf("connected events = %v, want alpha and beta", seen)
	}
}

func TestStartAll_PartialFailureStillStarts(t *testing.T) {
	cfg := twoGuildConfig(t)
	hub := newSessionHub()
	hub.failFor["BotBeta"] = true
	s := newTestSupervisor(t, cfg, hub)
	defer s.StopAll()

	if err := s.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll error: %v", err)
	}
	if !s.IsConnected("alpha") {
		t.Error("alpha not connected")
	}
	if s.IsConnected("beta") {
		t.Error("beta connected despite failing dials")
	}
}

func TestStartAll_TotalFailure(t *testing.T) {
	cfg := twoGuildConfig(t)
	hub := newSessionHub()
	hub.failFor["BotAlpha"] = true
	hub.failFor["BotBeta"] = true
	s := newTestSupervisor(t, cfg, hub)
	defer s.StopAll()

	err := s.StartAll(context.Background())
	if !errors.Is(err, ErrStartupFailed) {
		t.Fatalf("StartAll = %v, want ErrStartupFailed", err)
	}
}

func TestRecordsFlowUpward(t *testing.T) {
	cfg := twoGuildConfig(t)
	hub := newSessionHub()
	s := newTestSupervisor(t, cfg, hub)
	defer s.StopAll()

	if err := s.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll error: %v", err)
	}

	hub.session("BotAlpha").events <- gameclient.Event{
		Type: gameclient.TypeMessage, Text: "Guild > Steve: hello",
	}

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Record == nil {
				continue // lifecycle event
			}
			if ev.GuildID != "alpha" {
				t.Fatalf("record from guild %s, want alpha", ev.GuildID)
			}
			chat, ok := ev.Record.(classify.GuildChat)
			if !ok || chat.Username != "Steve" {
				t.Fatalf("record = %#v", ev.Record)
			}
			return
		case <-deadline:
			t.Fatal("record never surfaced")
		}
	}
}

func TestDisconnectSchedulesReconnect(t *testing.T) {
	cfg := twoGuildConfig(t)
	hub := newSessionHub()
	s := newTestSupervisor(t, cfg, hub)
	defer s.StopAll()

	if err := s.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll error: %v", err)
	}

	first := hub.session("BotAlpha")
	first.events <- gameclient.Event{Type: gameclient.TypeEnd, Reason: "server restart"}

	// retryDelay is 10ms in the fixture; jitter adds up to 5s, so allow a
	// generous window for the replacement session to appear.
	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if sess := hub.session("BotAlpha"); sess != nil && sess != first && s.IsConnected("alpha") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("alpha never reconnected after session end")
}

func TestSendUnknownGuild(t *testing.T) {
	cfg := twoGuildConfig(t)
	hub := newSessionHub()
	s := newTestSupervisor(t, cfg, hub)
	defer s.StopAll()

	if err := s.SendMessage("gamma", "hi"); !errors.Is(err, ErrUnknownGuild) {
		t.Errorf("SendMessage unknown guild = %v, want ErrUnknownGuild", err)
	}
	if err := s.SendMessage("alpha", "hi"); !errors.Is(err, guild.ErrNotConnected) {
		t.Errorf("SendMessage offline guild = %v, want ErrNotConnected", err)
	}
}

func TestStopAllIdempotent(t *testing.T) {
	cfg := twoGuildConfig(t)
	hub := newSessionHub()
	s := newTestSupervisor(t, cfg, hub)

	if err := s.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll error: %v", err)
	}
	s.StopAll()
	s.StopAll() // second call must be a no-op

	select {
	case <-s.Done():
	default:
		t.Error("Done not closed after StopAll")
	}
}
