package interguild

import (
	"fmt"

	"github.com/guildlink/bridge-app/internal/classify"
	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/guild"
)

// Renderer formats classified records into chat lines for a target guild.
// Output is trimmed to the target account's chat length limit.
type Renderer struct {
	cfg *config.Config
}

// NewRenderer creates a renderer over the loaded configuration.
func NewRenderer(cfg *config.Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// Chat renders a relayed chat message for the target guild. Layout depends
// on the tag toggles:
//
//	username: message
//	[TAG] username: message
//	[TAG] [OFFICER] username: message
func (r *Renderer) Chat(rec classify.GuildChat, source, target *config.Guild) string {
	ig := r.cfg.Bridge.InterGuild

	line := rec.Username + ": " + rec.Message
	if rec.Subtype == classify.SubtypeOfficer {
		line = "[OFFICER] " + line
	}
	if ig.ShowTags && source.Tag != "" {
		line = "[" + source.Tag + "] " + line
	} else if ig.ShowSourceTag {
		line = "[" + sourceLabel(source) + "] " + line
	}
	return guild.Truncate(line, target.Account.ChatLengthLimit)
}

// Event renders a shareable event for the target guild.
func (r *Renderer) Event(ev classify.Event, source, target *config.Guild) string {
	subject := ev.Target
	if subject == "" {
		subject = ev.Actor
	}

	var body string
	switch ev.Kind {
	case classify.EventWelcome:
		body = fmt.Sprintf("%s joined the guild", subject)
	case classify.EventKick:
		body = fmt.Sprintf("%s was kicked from the guild", ev.Target)
	case classify.EventPromote:
		body = fmt.Sprintf("%s was promoted to %s", ev.Target, ev.ToRank)
	case classify.EventDemote:
		body = fmt.Sprintf("%s was demoted to %s", ev.Target, ev.ToRank)
	case classify.EventLevel:
		body = fmt.Sprintf("the guild reached level %d", ev.Level)
	case classify.EventMotd:
		body = "MOTD: " + ev.Payload
	case "disconnect":
		body = "bridge disconnected"
	default:
		body = ev.Raw()
	}

	line := body
	if label := sourceLabel(source); label != "" {
		line = "[" + label + "] " + body
	}
	return guild.Truncate(line, target.Account.ChatLengthLimit)
}

// sourceLabel picks the tag when one is configured, otherwise the name.
func sourceLabel(g *config.Guild) string {
	if g.Tag != "" {
		return g.Tag
	}
	return g.Name
}
