package strategy

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/gameclient"
)

// scriptRetries bounds how often the post-connect script is re-run when a
// step fails. Repeated runs of the script are safe.
const scriptRetries = 3

// stepWait is the fixed pause between script steps; the server silently
// drops commands sent faster than chat allows. Variable so tests can shrink
// it.
var stepWait = 2 * time.Second

// guildRelated matches system lines about guild membership that carry no
// "Guild >" prefix. Kept broad on purpose: false positives end up as
// Unknown records, false negatives are lost events.
var guildRelated = regexp.MustCompile(
	`joined the guild!|left the guild!|was kicked from the guild|was promoted from|was demoted from` +
		`|invited .* to the guild!|^You invited |^Online Members|^The Guild has reached Level` +
		`|^Guild MOTD: |has muted |has unmuted |^Blocked |^Unblocked ` +
		`|guild!?$|your guild|the guild chat` +
		`|^Can't find a player by the name of|^You cannot kick this player!$` +
		`|^You can only promote up to your own rank!$` +
		`|^You do not have permission to use this command!$` +
		`|^You have been (?:promoted|demoted) to `)

// Hypixel is the strategy for the hypixel flavor. After login it switches
// the client language to English (so the pattern catalog applies) and then
// warps to limbo, a sub-area that keeps idle sessions from being kicked.
type Hypixel struct{}

var hypixelScript = []string{"/lang english", "/limbo"}

// OnConnect runs the bootstrap script with bounded retries. Script failure
// is logged and swallowed: a session that cannot reach limbo still bridges
// chat, it is just likelier to be kicked for idling.
func (h *Hypixel) OnConnect(ctx context.Context, s gameclient.Session, g *config.Guild) error {
	var lastErr error
	for attempt := 1; attempt <= scriptRetries; attempt++ {
		if lastErr = h.runScript(ctx, s); lastErr == nil {
			return nil
		}
		log.Printf("[strategy] guild=%s post-connect script attempt %d/%d failed: %v",
			g.ID, attempt, scriptRetries, lastErr)
		if err := sleep(ctx, stepWait); err != nil {
			return nil
		}
	}
	log.Printf("[strategy] guild=%s post-connect script gave up after %d attempts: %v",
		g.ID, scriptRetries, lastErr)
	return nil
}

// OnReconnect re-runs the same script; it is idempotent.
func (h *Hypixel) OnReconnect(ctx context.Context, s gameclient.Session, g *config.Guild) error {
	return h.OnConnect(ctx, s, g)
}

func (h *Hypixel) runScript(ctx context.Context, s gameclient.Session) error {
	for _, step := range hypixelScript {
		if err := s.Chat(step); err != nil {
			return fmt.Errorf("step %q: %w", step, err)
		}
		if err := sleep(ctx, stepWait); err != nil {
			return err
		}
	}
	return nil
}

// FilterInbound passes guild and officer channel lines plus the guild-shaped
// system messages; everything else (lobby chatter, party invites, server
// ads) never reaches the classifier.
func (h *Hypixel) FilterInbound(raw string, _ *config.Guild) bool {
	line := strings.TrimSpace(raw)
	if strings.HasPrefix(line, "Guild >") || strings.HasPrefix(line, "Officer >") {
		return true
	}
	return guildRelated.MatchString(line)
}
