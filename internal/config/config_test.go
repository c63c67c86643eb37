package config

import (
	"strings"
	"testing"
	"time"
)

const sampleTOML = `
[bridge.interGuild]
enabled = true
showTags = true
shareableEvents = ["welcome", "kick"]

[bridge.rateLimit.interGuild]
limit = 2
window = 10000

[features.chatParser]
preserveColors = false

[nats]
url = "nats://localhost:4222"

[[guilds]]
id = "alpha"
name = "Alpha"
tag = "ALP"
enabled = true
ranks = ["Member", "Officer", "Veteran"]
[guilds.account]
username = "BotAlpha"
chatLengthLimit = 100
[guilds.account.reconnection]
enabled = true
retryDelay = 30000
[guilds.server]
serverName = "hypixel"
host = "mc.example.net"
port = 25565
[guilds.commands]
allowedCommands = ["/g", "/msg"]

[[guilds]]
id = "beta"
name = "Beta"
tag = "BET"
enabled = false
[guilds.account]
username = "BotBeta"
[guilds.server]
host = "mc.example.net"
port = 25565
`

func TestParse_Sample(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if len(cfg.Guilds) != 2 {
		t.Fatalf("guilds = %d, want 2", len(cfg.Guilds))
	}
	g := cfg.Guild("alpha")
	if g == nil {
		t.Fatal("Guild(alpha) = nil")
	}
	if g.Account.Username != "BotAlpha" {
		t.Errorf("username = %q", g.Account.Username)
	}
	if g.Account.ChatLengthLimit != 100 {
		t.Errorf("chatLengthLimit = %d, want 100", g.Account.ChatLengthLimit)
	}
	if got := g.Account.Reconnection.RetryDelay(); got != 30*time.Second {
		t.Errorf("RetryDelay = %v, want 30s", got)
	}
	if !cfg.Bridge.InterGuild.Enabled || !cfg.Bridge.InterGuild.ShowTags {
		t.Error("interGuild toggles not decoded")
	}
	if got := cfg.Bridge.RateLimit.InterGuild.Window(); got != 10*time.Second {
		t.Errorf("rate window = %v, want 10s", got)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[[guilds]]
id = "alpha"
enabled = true
[guilds.account]
username = "Bot"
[guilds.server]
host = "h"
port = 25565
`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	g := cfg.Guild("alpha")
	if g.Account.ChatLengthLimit != DefaultMaxLength {
		t.Errorf("chatLengthLimit = %d, want default %d", g.Account.ChatLengthLimit, DefaultMaxLength)
	}
	if g.Account.Reconnection.RetryDelayMs != DefaultRetryDelayMs {
		t.Errorf("retryDelay = %d, want default %d", g.Account.Reconnection.RetryDelayMs, DefaultRetryDelayMs)
	}
	if g.Server.ServerName != "hypixel" {
		t.Errorf("serverName = %q, want hypixel default", g.Server.ServerName)
	}
	if cfg.Bridge.InterGuild.MaxDuplicatesPerWindow != DefaultMaxDuplicatesPerWindow {
		t.Errorf("maxDuplicatesPerWindow = %d", cfg.Bridge.InterGuild.MaxDuplicatesPerWindow)
	}
	if got := cfg.Bridge.InterGuild.DuplicateWindow(); got != 30*time.Second {
		t.Errorf("DuplicateWindow = %v, want 30s", got)
	}
	if cfg.Bridge.RateLimit.Command.Limit != DefaultCommandRateLimit {
		t.Errorf("command rate limit = %d", cfg.Bridge.RateLimit.Command.Limit)
	}
	if !cfg.Bridge.InterGuild.ShareableEvent("welcome") {
		t.Error("default shareable events missing welcome")
	}
	if cfg.Bridge.InterGuild.ShareableEvent("join") {
		t.Error("presence join should not be shareable by default")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{
			"missing id",
			`[[guilds]]
enabled = false`,
			"has no id",
		},
		{
			"duplicate id",
			`[[guilds]]
id = "alpha"
[[guilds]]
id = "alpha"`,
			"duplicate guild id",
		},
		{
			"enabled without username",
			`[[guilds]]
id = "alpha"
enabled = true
[guilds.server]
host = "h"
port = 25565`,
			"account.username is required",
		},
		{
			"enabled without host",
			`[[guilds]]
id = "alpha"
enabled = true
[guilds.account]
username = "Bot"`,
			"server.host is required",
		},
		{
			"port out of range",
			`[[guilds]]
id = "alpha"
enabled = true
[guilds.account]
username = "Bot"
[guilds.server]
host = "h"
port = 90000`,
			"out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParse_BadTOML(t *testing.T) {
	_, err := Parse([]byte(`[[guilds]`))
	if err == nil {
		t.Fatal("Parse accepted malformed TOML")
	}
}

func TestGuildLookups(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if g := cfg.GuildByName("alpha"); g == nil || g.ID != "alpha" {
		t.Error("GuildByName by id failed")
	}
	if g := cfg.GuildByName("ALPHA"); g == nil {
		t.Error("GuildByName is not case-insensitive")
	}
	if g := cfg.GuildByName("Beta"); g == nil {
		t.Error("GuildByName by display name failed")
	}
	if cfg.GuildByName("gamma") != nil {
		t.Error("GuildByName returned a guild for an unknown name")
	}

	enabled := cfg.EnabledGuilds()
	if len(enabled) != 1 || enabled[0].ID != "alpha" {
		t.Errorf("EnabledGuilds = %v, want [alpha]", enabled)
	}
}

func TestCommandAllowed(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	g := cfg.Guild("alpha")

	tests := []struct {
		command string
		want    bool
	}{
		{"/g invite Steve", true},
		{"/G KICK Steve reason", true},
		{"/msg Steve hi", true},
		{"/op Steve", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		if got := g.CommandAllowed(tt.command); got != tt.want {
			t.Errorf("CommandAllowed(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

func TestHasRank(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	g := cfg.Guild("alpha")

	if !g.HasRank("Officer") || !g.HasRank("officer") {
		t.Error("HasRank should match case-insensitively")
	}
	if g.HasRank("GuildMaster") {
		t.Error("HasRank accepted an unconfigured rank")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Fatal("Load accepted a missing file")
	}
}
