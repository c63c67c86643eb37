// Package gameclient implements the game-server client library contract: it
// dials the server's WebSocket chat endpoint, authenticates the bot account,
// and exposes the session as a typed event stream plus Chat/Quit. All frames
// are JSON envelopes with a type discriminator; the low-level game protocol
// is terminated server-side.
package gameclient

import (
	"encoding/json"
	"fmt"
)

// Client -> server envelope types.
const (
	TypeAuth = "auth"
	TypeChat = "chat"
	TypeQuit = "quit"
)

// Server -> client envelope types.
const (
	TypeSpawn   = "spawn"
	TypeEnd     = "end"
	TypeKicked  = "kicked"
	TypeError   = "error"
	TypeMessage = "message"
	TypeHealth  = "health"
)

// envelope is the wire frame. Only the fields relevant to a given type are
// populated.
type envelope struct {
	Type string `json:"type"`

	// auth
	Username       string `json:"username,omitempty"`
	AuthMethod     string `json:"auth_method,omitempty"`
	Version        string `json:"version,omitempty"`
	SessionPath    string `json:"session_path,omitempty"`
	CachePath      string `json:"cache_path,omitempty"`
	ProfilesFolder string `json:"profiles_folder,omitempty"`

	// chat / message
	Text string `json:"text,omitempty"`

	// end / kicked / error
	Reason   string `json:"reason,omitempty"`
	LoggedIn bool   `json:"logged_in,omitempty"`

	// health
	Health float64 `json:"health,omitempty"`
}

// Event is one occurrence on the session: a chat line, a health update, or a
// lifecycle transition. Err is set only for TypeError events.
type Event struct {
	Type     string
	Text     string
	Reason   string
	LoggedIn bool
	Health   float64
	Err      error
}

func decodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("gameclient: decode frame: %w", err)
	}
	ev := Event{
		Type:     env.Type,
		Text:     env.Text,
		Reason:   env.Reason,
		LoggedIn: env.LoggedIn,
		Health:   env.Health,
	}
	if env.Type == TypeError {
		ev.Err = fmt.Errorf("gameclient: server error: %s", env.Reason)
	}
	return ev, nil
}
