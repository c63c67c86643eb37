package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/patterns"
)

var (
	// colorCode matches the legacy "§x" color escapes servers embed in chat.
	colorCode = regexp.MustCompile(`(?i)§[0-9a-z]`)

	// rankBracket strips a leading "[MVP+] "-style prefix from member names
	// in online lists.
	rankBracket = regexp.MustCompile(`^\[[^\]]+\]\s*`)
)

// Classifier decodes raw lines against a pattern catalog. It holds no
// per-guild state and is safe for concurrent use from every connection.
type Classifier struct {
	catalog        *patterns.Catalog
	preserveColors bool
}

// New returns a classifier over the given catalog. When preserveColors is
// set, color escapes are kept in the raw line (they are still absent from
// decoded fields, since the patterns do not capture them).
func New(catalog *patterns.Catalog, preserveColors bool) *Classifier {
	return &Classifier{catalog: catalog, preserveColors: preserveColors}
}

// Classify decodes one raw line for a guild. It never panics and never
// returns nil: lines the catalog cannot place come back as Unknown, filtered
// lines and the bot's own echoes come back as Ignored.
func (c *Classifier) Classify(raw string, g *config.Guild) Record {
	line := raw
	if !c.preserveColors {
		line = colorCode.ReplaceAllString(line, "")
	}
	line = strings.TrimSpace(line)
	flavor := g.Server.ServerName

	if m, ok := c.catalog.Match(flavor, patterns.ClassIgnore, line); ok {
		return Ignored{Reason: ReasonFilteredContent + ":" + m.Kind, RawLine: line}
	}

	// Presence events share the "Guild > name ..." shape with chat; never
	// let a line ending in "joined." or "left." reach the chat classes.
	if !strings.HasSuffix(line, " joined.") && !strings.HasSuffix(line, " left.") {
		if m, ok := c.catalog.Match(flavor, patterns.ClassGuildChat, line); ok {
			return c.chatRecord(m, line, g, SubtypeGuild)
		}
		if m, ok := c.catalog.Match(flavor, patterns.ClassOfficerChat, line); ok {
			return c.chatRecord(m, line, g, SubtypeOfficer)
		}
	}

	if m, ok := c.catalog.Match(flavor, patterns.ClassEvent, line); ok {
		return eventRecord(m, line, g)
	}

	if m, ok := c.catalog.Match(flavor, patterns.ClassSystem, line); ok {
		return System{
			GuildID: g.ID,
			Kind:    m.Kind,
			Actor:   m.Group("actor"),
			Target:  m.Group("target"),
			Payload: line,
			RawLine: line,
		}
	}

	return Unknown{GuildID: g.ID, RawLine: line}
}

func (c *Classifier) chatRecord(m patterns.Match, line string, g *config.Guild, subtype Subtype) Record {
	username := m.Group("username")
	if strings.EqualFold(username, g.Account.Username) {
		// The bot's own relayed text coming back at it. Dropping here
		// short-circuits inter-guild echo loops before the fan-out engine
		// ever sees the record.
		return Ignored{Reason: ReasonSelfEcho, RawLine: line}
	}
	return GuildChat{
		GuildID:  g.ID,
		Username: username,
		Rank:     m.Group("rank"),
		Message:  m.Group("message"),
		Subtype:  subtype,
		RawLine:  line,
	}
}

func eventRecord(m patterns.Match, line string, g *config.Guild) Record {
	ev := Event{
		GuildID:  g.ID,
		Kind:     EventKind(m.Kind),
		Actor:    m.Group("actor"),
		Target:   m.Group("target"),
		FromRank: m.Group("from"),
		ToRank:   m.Group("to"),
		Reason:   m.Group("reason"),
		RawLine:  line,
	}

	// join/leave/welcome patterns name the subject "username".
	if ev.Actor == "" && ev.Target == "" {
		ev.Actor = m.Group("username")
	}
	if v := m.Group("count"); v != "" {
		ev.Count, _ = strconv.Atoi(v)
	}
	if v := m.Group("level"); v != "" {
		ev.Level, _ = strconv.Atoi(v)
	}
	if v := m.Group("members"); v != "" {
		ev.Members = splitMembers(v)
		if ev.Count == 0 {
			ev.Count = len(ev.Members)
		}
	}
	switch ev.Kind {
	case EventMotd:
		ev.Payload = m.Group("motd")
	case EventMisc:
		ev.Payload = line
	}
	return ev
}

// splitMembers splits an online-member list on commas, trims whitespace and
// strips rank brackets from each name.
func splitMembers(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		name := rankBracket.ReplaceAllString(strings.TrimSpace(p), "")
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
