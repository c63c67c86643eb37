package bridge

import (
	"strings"
	"testing"

	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/correlator"
)

func commandGuild() *config.Guild {
	return &config.Guild{
		ID:      "alpha",
		Name:    "Alpha",
		Enabled: true,
		Ranks:   []string{"Member", "Officer"},
		Commands: config.Commands{
			AllowedCommands: []string{"/msg", "/w"},
		},
	}
}

func TestBuildCommand_Typed(t *testing.T) {
	g := commandGuild()

	tests := []struct {
		name     string
		req      CommandRequest
		wantLine string
		wantKind correlator.Kind
	}{
		{
			"invite",
			CommandRequest{Kind: "invite", Target: "Steve"},
			"/g invite Steve", correlator.KindInvite,
		},
		{
			"kick with reason",
			CommandRequest{Kind: "kick", Target: "Troll99", Reason: "spam"},
			"/g kick Troll99 spam", correlator.KindKick,
		},
		{
			"kick default reason",
			CommandRequest{Kind: "kick", Target: "Troll99"},
			"/g kick Troll99 removed by moderation", correlator.KindKick,
		},
		{
			"promote",
			CommandRequest{Kind: "promote", Target: "Steve"},
			"/g promote Steve", correlator.KindPromote,
		},
		{
			"demote",
			CommandRequest{Kind: "demote", Target: "Steve"},
			"/g demote Steve", correlator.KindDemote,
		},
		{
			"setrank",
			CommandRequest{Kind: "setrank", Target: "Steve", Rank: "Officer"},
			"/g setrank Steve Officer", correlator.KindSetRank,
		},
		{
			"mute",
			CommandRequest{Kind: "mute", Target: "Troll99", Duration: "7d"},
			"/g mute Troll99 7d", correlator.KindMute,
		},
		{
			"mute everyone",
			CommandRequest{Kind: "mute", Target: "everyone", Duration: "1h"},
			"/g mute everyone 1h", correlator.KindMute,
		},
		{
			"unmute",
			CommandRequest{Kind: "unmute", Target: "Troll99"},
			"/g unmute Troll99", correlator.KindUnmute,
		},
		{
			"block",
			CommandRequest{Kind: "block", Target: "Spammer42"},
			"/block add Spammer42", correlator.KindBlock,
		},
		{
			"blacklist alias",
			CommandRequest{Kind: "blacklist", Target: "Spammer42"},
			"/block add Spammer42", correlator.KindBlock,
		},
		{
			"unblock",
			CommandRequest{Kind: "unblock", Target: "Spammer42"},
			"/block remove Spammer42", correlator.KindUnblock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, kind, err := buildCommand(g, &tt.req)
			if err != nil {
				t.Fatalf("buildCommand error: %v", err)
			}
			if line != tt.wantLine {
				t.Errorf("line = %q, want %q", line, tt.wantLine)
			}
			if kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
		})
	}
}

func TestBuildCommand_Rejections(t *testing.T) {
	g := commandGuild()

	tests := []struct {
		name string
		req  CommandRequest
		want string
	}{
		{"unknown kind", CommandRequest{Kind: "nuke", Target: "Steve"}, "unknown command kind"},
		{"bad username", CommandRequest{Kind: "invite", Target: "Steve evil"}, "invalid username"},
		{"injection attempt", CommandRequest{Kind: "kick", Target: "x; /op x"}, "invalid username"},
		{"bad rank", CommandRequest{Kind: "setrank", Target: "Steve", Rank: "GuildMaster"}, "unknown rank"},
		{"missing rank", CommandRequest{Kind: "setrank", Target: "Steve"}, "rank is required"},
		{"bad duration", CommandRequest{Kind: "mute", Target: "Steve", Duration: "forever"}, "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := buildCommand(g, &tt.req)
			if err == nil {
				t.Fatal("buildCommand succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestBuildCommand_Execute(t *testing.T) {
	g := commandGuild()

	line, kind, err := buildCommand(g, &CommandRequest{Kind: "execute", Command: "/msg Steve hello", Admin: true})
	if err != nil {
		t.Fatalf("allow-listed execute rejected: %v", err)
	}
	if line != "/msg Steve hello" {
		t.Errorf("line = %q", line)
	}
	if kind != "" {
		t.Errorf("kind = %q, want empty (no correlation for raw execute)", kind)
	}

	tests := []struct {
		name    string
		command string
		admin   bool
		want    string
	}{
		{"not admin", "/msg Steve hello", false, "admin"},
		{"empty", "", true, "empty command"},
		{"guild command", "/g kick Steve bypass", true, "typed kind"},
		{"guild long form", "/guild invite Steve", true, "typed kind"},
		{"bare guild", "/g", true, "typed kind"},
		{"not allow-listed", "/op Steve", true, "allow-list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := buildCommand(g, &CommandRequest{Kind: "execute", Command: tt.command, Admin: tt.admin})
			if err == nil {
				t.Fatal("buildCommand succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		card CommandResultCard
		want string
	}{
		{CommandResultCard{Type: "command_result", Success: true}, "success"},
		{CommandResultCard{Type: "command_result", Success: false}, "failed"},
		{CommandResultCard{Type: "timeout"}, "timeout"},
		{CommandResultCard{Type: "rejected"}, "rejected"},
		{CommandResultCard{Type: "cancelled"}, "rejected"},
		{CommandResultCard{Type: "rate_limited"}, "rate_limited"},
		{CommandResultCard{Type: "failed"}, "failed"},
	}
	for _, tt := range tests {
		if got := outcomeOf(&tt.card); got != tt.want {
			t.Errorf("outcomeOf(%q/%v) = %q, want %q", tt.card.Type, tt.card.Success, got, tt.want)
		}
	}
}
