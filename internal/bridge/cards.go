package bridge

import "time"

// ChatCard is the JSON payload published for every relayed chat message,
// one per source guild, on the chat and officer subjects.
type ChatCard struct {
	GuildID   string    `json:"guild_id"`
	GuildName string    `json:"guild_name"`
	GuildTag  string    `json:"guild_tag,omitempty"`
	Subtype   string    `json:"subtype"` // "guild" or "officer"
	Username  string    `json:"username"`
	Rank      string    `json:"rank,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EventCard is the JSON payload published for decoded guild events.
type EventCard struct {
	GuildID   string    `json:"guild_id"`
	GuildName string    `json:"guild_name"`
	Kind      string    `json:"kind"`
	Actor     string    `json:"actor,omitempty"`
	Target    string    `json:"target,omitempty"`
	FromRank  string    `json:"from_rank,omitempty"`
	ToRank    string    `json:"to_rank,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Count     int       `json:"count,omitempty"`
	Level     int       `json:"level,omitempty"`
	Members   []string  `json:"members,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusCard is the JSON payload published on connection state changes.
type StatusCard struct {
	GuildID   string    `json:"guild_id"`
	GuildName string    `json:"guild_name"`
	Status    string    `json:"status"` // "connected", "disconnected", "kicked", "failed"
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandResultCard is the JSON payload published on the per-request result
// subject when a moderation command completes.
type CommandResultCard struct {
	RequestID string    `json:"request_id"`
	GuildID   string    `json:"guild_id"`
	Kind      string    `json:"kind"`
	Target    string    `json:"target,omitempty"`
	Success   bool      `json:"success"`
	Type      string    `json:"type"` // "command_result", "timeout", "cancelled", "rejected", "rate_limited"
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
