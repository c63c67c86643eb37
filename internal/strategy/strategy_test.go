package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/gameclient"
)

type fakeSession struct {
	sent    []string
	failAll bool
	events  chan gameclient.Event
}

func (f *fakeSession) Chat(text string) error {
	if f.failAll {
		return errors.New("write failed")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSession) Quit() error { return nil }

func (f *fakeSession) Events() <-chan gameclient.Event { return f.events }

func TestForFlavor(t *testing.T) {
	if _, ok := ForFlavor("hypixel").(*Hypixel); !ok {
		t.Error("hypixel flavor did not return Hypixel strategy")
	}
	if _, ok := ForFlavor("someserver").(*Generic); !ok {
		t.Error("unknown flavor did not return Generic strategy")
	}
}

func TestHypixel_OnConnectRunsScript(t *testing.T) {
	old := stepWait
	stepWait = time.Millisecond
	defer func() { stepWait = old }()

	s := &fakeSession{}
	g := &config.Guild{ID: "alpha"}

	if err := (&Hypixel{}).OnConnect(context.Background(), s, g); err != nil {
		t.Fatalf("OnConnect error: %v", err)
	}
	if len(s.sent) != 2 || s.sent[0] != "/lang english" || s.sent[1] != "/limbo" {
		t.Errorf("script sent %v, want [/lang english /limbo]", s.sent)
	}
}

func TestHypixel_OnConnectSwallowsScriptFailure(t *testing.T) {
	s := &fakeSession{failAll: true}
	g := &config.Guild{ID: "alpha"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // skip the retry waits

	if err := (&Hypixel{}).OnConnect(ctx, s, g); err != nil {
		t.Fatalf("OnConnect returned %v, want nil (script failure must not kill the connection)", err)
	}
}

func TestHypixel_FilterInbound(t *testing.T) {
	h := &Hypixel{}
	g := &config.Guild{ID: "alpha"}

	tests := []struct {
		name string
		line string
		want bool
	}{
		{"guild chat", "Guild > Steve: hello", true},
		{"officer chat", "Officer > Steve: psst", true},
		{"welcome", "Steve joined the guild!", true},
		{"kick", "Troll99 was kicked from the guild by Mod_1!", true},
		{"promote", "Steve was promoted from Member to Officer", true},
		{"self invite", "You invited Steve to your guild. They have 5 minutes to accept.", true},
		{"online list", "Online Members (3): Steve, Alex, Zed", true},
		{"motd", "Guild MOTD: welcome", true},
		{"mute", "Mod_1 has muted Troll99 for 7d", true},
		{"block", "Blocked Spammer42.", true},
		{"player not found", "Can't find a player by the name of 'Nobody'!", true},
		{"kick refusal", "You cannot kick this player!", true},
		{"permission refusal", "You do not have permission to use this command!", true},
		{"lobby chatter", "[MVP+] Rando: anyone want to duel?", false},
		{"server ad", "Watch the finals live at example.tv!", false},
		{"party invite", "Rando has invited you to join their party!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.FilterInbound(tt.line, g); got != tt.want {
				t.Errorf("FilterInbound(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestGeneric_PassesEverything(t *testing.T) {
	gen := &Generic{}
	g := &config.Guild{ID: "alpha"}

	for _, line := range []string{"Guild > Steve: hello", "anything at all", ""} {
		if !gen.FilterInbound(line, g) {
			t.Errorf("Generic.FilterInbound(%q) = false, want true", line)
		}
	}
	if err := gen.OnConnect(context.Background(), &fakeSession{}, g); err != nil {
		t.Errorf("Generic.OnConnect error: %v", err)
	}
}
