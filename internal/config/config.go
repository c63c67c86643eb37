// Package config loads and validates the bridge configuration from a TOML
// file. Top-level addresses (NATS, Redis, PostgreSQL, metrics) can be
// overridden from the environment in main; everything guild-related lives in
// the file. A loaded Config is immutable: components receive it by pointer
// and never write to it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Defaults applied by Load when the file leaves a field unset.
const (
	DefaultChatLengthLimit = 256
	DefaultRetryDelayMs    = 30000
	DefaultMaxLength       = 256

	DefaultDuplicateWindowMs       = 30000
	DefaultMaxDuplicatesPerWindow  = 2
	DefaultInterGuildRateLimit     = 2
	DefaultInterGuildRateWindowMs  = 10000
	DefaultCommandRateLimit        = 5
	DefaultCommandRateWindowMs     = 10000
)

// DefaultShareableEvents is the event allow-list used when the file does not
// configure bridge.interGuild.shareableEvents.
var DefaultShareableEvents = []string{
	"welcome", "disconnect", "kick", "promote", "demote", "level", "motd",
}

// Config is the root of the configuration tree.
type Config struct {
	Guilds   []Guild  `toml:"guilds"`
	Bridge   Bridge   `toml:"bridge"`
	Features Features `toml:"features"`
	Advanced Advanced `toml:"advanced"`

	NATS     NATS     `toml:"nats"`
	Redis    Redis    `toml:"redis"`
	Database Database `toml:"database"`
	Metrics  Metrics  `toml:"metrics"`
	Logs     Logs     `toml:"logs"`
}

// Guild describes one bridged guild: identity, bot account, game server and
// the moderation surface allowed against it.
type Guild struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Tag     string `toml:"tag"`
	Enabled bool   `toml:"enabled"`

	Account  Account  `toml:"account"`
	Server   Server   `toml:"server"`
	Ranks    []string `toml:"ranks"`
	Commands Commands `toml:"commands"`
}

// Account holds the bot account identity and session persistence paths.
type Account struct {
	Username        string       `toml:"username"`
	AuthMethod      string       `toml:"authMethod"`
	SessionPath     string       `toml:"sessionPath"`
	CachePath       string       `toml:"cachePath"`
	ProfilesFolder  string       `toml:"profilesFolder"`
	ChatLengthLimit int          `toml:"chatLengthLimit"`
	Reconnection    Reconnection `toml:"reconnection"`
}

// Reconnection is the per-guild reconnect policy.
type Reconnection struct {
	Enabled      bool `toml:"enabled"`
	RetryDelayMs int  `toml:"retryDelay"` // base delay in milliseconds
}

// RetryDelay returns the base reconnect delay as a duration.
func (r Reconnection) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMs) * time.Millisecond
}

// Server identifies the game server a guild lives on. ServerName selects the
// pattern catalog flavor and strategy ("hypixel", "generic").
type Server struct {
	ServerName string `toml:"serverName"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Version    string `toml:"version"`
}

// Commands is the allow-list of chat commands the bridge may send on behalf
// of this guild. First-token match, case-insensitive.
type Commands struct {
	AllowedCommands []string `toml:"allowedCommands"`
}

// Bridge groups inter-guild fan-out and rate-limit settings.
type Bridge struct {
	InterGuild InterGuild `toml:"interGuild"`
	RateLimit  RateLimits `toml:"rateLimit"`
}

// InterGuild controls the fan-out engine.
type InterGuild struct {
	Enabled              bool     `toml:"enabled"`
	OfficerToGuildChat   bool     `toml:"officerToGuildChat"`
	OfficerToOfficerChat bool     `toml:"officerToOfficerChat"`
	ShowTags             bool     `toml:"showTags"`
	ShowSourceTag        bool     `toml:"showSourceTag"`
	ShareableEvents      []string `toml:"shareableEvents"`

	MaxDuplicatesPerWindow int `toml:"maxDuplicatesPerWindow"`
	DuplicateWindowMs      int `toml:"duplicateWindow"` // milliseconds
}

// DuplicateWindow returns the dedup window as a duration.
func (ig InterGuild) DuplicateWindow() time.Duration {
	return time.Duration(ig.DuplicateWindowMs) * time.Millisecond
}

// ShareableEvent reports whether an event kind is on the fan-out allow-list.
func (ig InterGuild) ShareableEvent(kind string) bool {
	for _, k := range ig.ShareableEvents {
		if strings.EqualFold(k, kind) {
			return true
		}
	}
	return false
}

// RateLimits holds the two throttles: inter-guild fan-out per source guild
// and the external command surface per requester.
type RateLimits struct {
	InterGuild Rate `toml:"interGuild"`
	Command    Rate `toml:"command"`
}

// Rate is a count-per-window limit. Window is in milliseconds.
type Rate struct {
	Limit    int `toml:"limit"`
	WindowMs int `toml:"window"`
}

// Window returns the rate window as a duration.
func (r Rate) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

// Features toggles optional behavior.
type Features struct {
	ChatParser ChatParser `toml:"chatParser"`
}

// ChatParser configures the classifier front-end.
type ChatParser struct {
	PreserveColors bool `toml:"preserveColors"`
}

// Advanced holds tuning knobs that rarely change.
type Advanced struct {
	MessageCleaner MessageCleaner `toml:"messageCleaner"`
}

// MessageCleaner bounds outbound message length when a guild does not set
// its own chatLengthLimit.
type MessageCleaner struct {
	MaxLength int `toml:"maxLength"`
}

// NATS connection settings for the external control plane.
type NATS struct {
	URL  string `toml:"url"`
	Name string `toml:"name"`
}

// Redis connection settings (blacklist store, command rate limiter).
type Redis struct {
	Addr string `toml:"addr"`
}

// Database connection settings (moderation audit store).
type Database struct {
	URL string `toml:"url"`
}

// Metrics exposure settings.
type Metrics struct {
	Addr string `toml:"addr"`
}

// Logs holds the log directory for rotating files; rotation itself is the
// process supervisor's job.
type Logs struct {
	Dir string `toml:"dir"`
}

// Load reads, decodes and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration from raw TOML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Advanced.MessageCleaner.MaxLength == 0 {
		c.Advanced.MessageCleaner.MaxLength = DefaultMaxLength
	}
	if c.Bridge.InterGuild.MaxDuplicatesPerWindow == 0 {
		c.Bridge.InterGuild.MaxDuplicatesPerWindow = DefaultMaxDuplicatesPerWindow
	}
	if c.Bridge.InterGuild.DuplicateWindowMs == 0 {
		c.Bridge.InterGuild.DuplicateWindowMs = DefaultDuplicateWindowMs
	}
	if len(c.Bridge.InterGuild.ShareableEvents) == 0 {
		c.Bridge.InterGuild.ShareableEvents = append([]string(nil), DefaultShareableEvents...)
	}
	if c.Bridge.RateLimit.InterGuild.Limit == 0 {
		c.Bridge.RateLimit.InterGuild.Limit = DefaultInterGuildRateLimit
	}
	if c.Bridge.RateLimit.InterGuild.WindowMs == 0 {
		c.Bridge.RateLimit.InterGuild.WindowMs = DefaultInterGuildRateWindowMs
	}
	if c.Bridge.RateLimit.Command.Limit == 0 {
		c.Bridge.RateLimit.Command.Limit = DefaultCommandRateLimit
	}
	if c.Bridge.RateLimit.Command.WindowMs == 0 {
		c.Bridge.RateLimit.Command.WindowMs = DefaultCommandRateWindowMs
	}
	for i := range c.Guilds {
		g := &c.Guilds[i]
		if g.Account.ChatLengthLimit == 0 {
			g.Account.ChatLengthLimit = c.Advanced.MessageCleaner.MaxLength
		}
		if g.Account.Reconnection.RetryDelayMs == 0 {
			g.Account.Reconnection.RetryDelayMs = DefaultRetryDelayMs
		}
		if g.Server.ServerName == "" {
			g.Server.ServerName = "hypixel"
		}
	}
}

// Validate checks structural invariants: unique guild IDs, and a usable
// account and server block on every enabled guild.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Guilds))
	for i := range c.Guilds {
		g := &c.Guilds[i]
		if g.ID == "" {
			return fmt.Errorf("config: guild %d has no id", i)
		}
		if seen[g.ID] {
			return fmt.Errorf("config: duplicate guild id %q", g.ID)
		}
		seen[g.ID] = true
		if !g.Enabled {
			continue
		}
		if g.Account.Username == "" {
			return fmt.Errorf("config: guild %q: account.username is required", g.ID)
		}
		if g.Server.Host == "" {
			return fmt.Errorf("config: guild %q: server.host is required", g.ID)
		}
		if g.Server.Port <= 0 || g.Server.Port > 65535 {
			return fmt.Errorf("config: guild %q: server.port %d out of range", g.ID, g.Server.Port)
		}
	}
	return nil
}

// Guild returns the guild with the given ID, or nil.
func (c *Config) Guild(id string) *Guild {
	for i := range c.Guilds {
		if c.Guilds[i].ID == id {
			return &c.Guilds[i]
		}
	}
	return nil
}

// GuildByName returns the guild whose id or name matches case-insensitively,
// or nil. Slash commands address guilds by name.
func (c *Config) GuildByName(name string) *Guild {
	for i := range c.Guilds {
		g := &c.Guilds[i]
		if strings.EqualFold(g.ID, name) || strings.EqualFold(g.Name, name) {
			return g
		}
	}
	return nil
}

// EnabledGuilds returns pointers to all enabled guilds.
func (c *Config) EnabledGuilds() []*Guild {
	out := make([]*Guild, 0, len(c.Guilds))
	for i := range c.Guilds {
		if c.Guilds[i].Enabled {
			out = append(out, &c.Guilds[i])
		}
	}
	return out
}

// CommandAllowed reports whether a chat command's first token is on the
// guild's allow-list. Comparison is case-insensitive.
func (g *Guild) CommandAllowed(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	for _, allowed := range g.Commands.AllowedCommands {
		if strings.EqualFold(allowed, fields[0]) {
			return true
		}
	}
	return false
}

// HasRank reports whether rank is one of the guild's configured ranks,
// case-insensitively. The configured rank list is authoritative.
func (g *Guild) HasRank(rank string) bool {
	for _, r := range g.Ranks {
		if strings.EqualFold(r, rank) {
			return true
		}
	}
	return false
}
