// Package classify turns raw game-server text into typed records. The
// classifier is a thin, never-failing front-end over the pattern catalog:
// any line it cannot decode comes back as Unknown rather than an error.
package classify

// Subtype distinguishes the two guild chat channels.
type Subtype string

const (
	SubtypeGuild   Subtype = "guild"
	SubtypeOfficer Subtype = "officer"
)

// EventKind labels decoded guild events.
type EventKind string

const (
	EventJoin    EventKind = "join"
	EventLeave   EventKind = "leave"
	EventWelcome EventKind = "welcome"
	EventKick    EventKind = "kick"
	EventPromote EventKind = "promote"
	EventDemote  EventKind = "demote"
	EventInvite  EventKind = "invite"
	EventOnline  EventKind = "online"
	EventLevel   EventKind = "level"
	EventMotd    EventKind = "motd"
	EventMisc    EventKind = "misc"
)

// Ignore reasons.
const (
	ReasonFilteredContent = "filtered_content"
	ReasonSelfEcho        = "self_echo"
)

// Record is the classified form of one raw line. Records are plain values;
// they are handed between components by copy and never shared mutable.
type Record interface {
	// Raw returns the line the record was decoded from, after color
	// stripping and trimming.
	Raw() string
}

// GuildChat is a player message on the guild or officer channel.
type GuildChat struct {
	GuildID  string
	Username string
	Rank     string // guild rank suffix, may be empty
	Message  string
	Subtype  Subtype
	RawLine  string
}

func (r GuildChat) Raw() string { return r.RawLine }

// Event is a decoded guild event (presence, membership, level, motd, ...).
type Event struct {
	GuildID  string
	Kind     EventKind
	Actor    string
	Target   string
	FromRank string
	ToRank   string
	Reason   string
	Count    int      // online-member count, 0 if absent
	Level    int      // guild level, 0 if absent
	Members  []string // online-member list, nil if absent
	Payload  string   // free-form remainder (motd text, misc line)
	RawLine  string
}

func (r Event) Raw() string { return r.RawLine }

// System is a server system message, typically command feedback.
type System struct {
	GuildID string
	Kind    string
	Actor   string
	Target  string
	Payload string
	RawLine string
}

func (r System) Raw() string { return r.RawLine }

// Unknown is a guild-related line no pattern decoded.
type Unknown struct {
	GuildID string
	RawLine string
}

func (r Unknown) Raw() string { return r.RawLine }

// Ignored is a line dropped by the ignore list or the self-echo guard.
type Ignored struct {
	Reason  string
	RawLine string
}

func (r Ignored) Raw() string { return r.RawLine }
