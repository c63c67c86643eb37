// Package interguild is the fan-out engine: it takes classified records
// from one guild's connection and replicates them into every other enabled
// guild, through a gauntlet of gates that stop echo loops, duplicates and
// floods before anything reaches the delivery queue.
package interguild

import (
	"log"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guildlink/bridge-app/internal/classify"
	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/metrics"
	"github.com/guildlink/bridge-app/internal/queue"
	"github.com/guildlink/bridge-app/internal/ratelimit"
)

// maintenanceInterval is how often idle state (history rings, dedup hashes,
// rate windows) is pruned.
const maintenanceInterval = time.Minute

// Relay-format patterns. A message that itself looks like bridge output is
// a relay echoing back through another guild's chat; forwarding it again
// would loop forever.
var relayFormats = []*regexp.Regexp{
	regexp.MustCompile(`^[a-zA-Z0-9_]{1,16}: .`),                         // name: text
	regexp.MustCompile(`^\[[^\]]+\] [a-zA-Z0-9_]{1,16}: .`),              // [TAG] name: text
	regexp.MustCompile(`^\[[^\]]+\] \[OFFICER\] [a-zA-Z0-9_]{1,16}: .`),  // [TAG] [OFFICER] name: text
	regexp.MustCompile(`^[a-zA-Z0-9_]{1,16}: [a-zA-Z0-9_]{1,16}: .`),     // name: name: text
}

// Stats are cheap process-local counters alongside the Prometheus series.
type Stats struct {
	Relayed            atomic.Uint64
	DroppedLoop        atomic.Uint64
	DroppedDuplicate   atomic.Uint64
	DroppedRateLimited atomic.Uint64
}

// Engine replicates records between guilds.
type Engine struct {
	cfg      *config.Config
	queue    *queue.Queue
	renderer *Renderer

	history *History
	dedup   *DuplicateTracker
	rate    *ratelimit.Window

	Stats Stats

	stopOnce sync.Once
	done     chan struct{}
}

// New builds an engine over the loaded configuration and the delivery queue.
func New(cfg *config.Config, q *queue.Queue) *Engine {
	ig := cfg.Bridge.InterGuild
	rl := cfg.Bridge.RateLimit.InterGuild
	return &Engine{
		cfg:      cfg,
		queue:    q,
		renderer: NewRenderer(cfg),
		history:  NewHistory(),
		dedup:    NewDuplicateTracker(ig.MaxDuplicatesPerWindow, ig.DuplicateWindow()),
		rate:     ratelimit.NewWindow(rl.Limit, rl.Window()),
		done:     make(chan struct{}),
	}
}

// Start launches the maintenance ticker.
func (e *Engine) Start() {
	go e.maintenance()
}

// Stop terminates the maintenance ticker.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

func (e *Engine) maintenance() {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case now := <-ticker.C:
			e.history.Shrink(e.cfg.Bridge.InterGuild.DuplicateWindow(), now)
			e.dedup.Prune(now)
			e.rate.Prune(now)
		}
	}
}

// HandleRecord routes a classified record from sourceGuildID into the other
// guilds. Records that are not chat or shareable events are ignored.
func (e *Engine) HandleRecord(sourceGuildID string, rec classify.Record) {
	if !e.cfg.Bridge.InterGuild.Enabled {
		return
	}
	switch r := rec.(type) {
	case classify.GuildChat:
		e.handleChat(sourceGuildID, r)
	case classify.Event:
		e.handleEvent(sourceGuildID, r)
	case classify.Ignored:
		// A chat line spoken by the guild's own bot account is our relay
		// echoing back; it counts as a detected loop.
		if r.Reason == classify.ReasonSelfEcho {
			e.Stats.DroppedLoop.Add(1)
			metrics.MessagesDropped.WithLabelValues("loop").Inc()
		}
	}
}

func (e *Engine) handleChat(sourceGuildID string, rec classify.GuildChat) {
	source := e.cfg.Guild(sourceGuildID)
	if source == nil {
		return
	}

	ig := e.cfg.Bridge.InterGuild
	if rec.Subtype == classify.SubtypeOfficer &&
		!ig.OfficerToGuildChat && !ig.OfficerToOfficerChat {
		return
	}

	now := time.Now()

	// Gate 1: messages already shaped like bridge output are echoes of our
	// own relays coming back through another guild.
	if looksRelayed(rec.Message) {
		e.Stats.DroppedLoop.Add(1)
		metrics.MessagesDropped.WithLabelValues("loop").Inc()
		return
	}

	// Gate 2: same user repeating the same line in the source channel.
	if e.history.SeenRecently(sourceGuildID, string(rec.Subtype), rec.Username, rec.Message,
		ig.DuplicateWindow(), now) {
		e.Stats.DroppedDuplicate.Add(1)
		metrics.MessagesDropped.WithLabelValues("duplicate").Inc()
		return
	}

	// Gate 3: the same content arriving through several source guilds at
	// once, which happens when guilds share members.
	hash := HashMessage(string(rec.Subtype), rec.Username, rec.Message)
	if e.dedup.Saturated(hash, now) {
		e.Stats.DroppedDuplicate.Add(1)
		metrics.MessagesDropped.WithLabelValues("duplicate").Inc()
		return
	}

	// Gate 4: per-source flood control.
	if !e.rate.Allow(sourceGuildID, now) {
		e.Stats.DroppedRateLimited.Add(1)
		metrics.MessagesDropped.WithLabelValues("rate_limited").Inc()
		return
	}

	// Only a message that cleared every gate enters the dedup state. A
	// gated drop must not mark the content as seen, or a legitimate resend
	// after the rate window reopens would be suppressed as a duplicate.
	e.history.Add(sourceGuildID, string(rec.Subtype), rec.Username, rec.Message, now)
	e.dedup.Record(hash, now)

	kind := queue.KindGuild
	if rec.Subtype == classify.SubtypeOfficer && ig.OfficerToOfficerChat {
		kind = queue.KindOfficer
	}

	relayed := false
	for _, target := range e.cfg.EnabledGuilds() {
		if sameGuild(source, target) {
			continue
		}
		text := e.renderer.Chat(rec, source, target)
		if text == "" {
			metrics.MessagesDropped.WithLabelValues("render").Inc()
			continue
		}
		e.queue.Enqueue(queue.Item{
			Kind:          kind,
			TargetGuildID: target.ID,
			SourceGuildID: sourceGuildID,
			Text:          text,
		})
		relayed = true
	}
	if relayed {
		e.Stats.Relayed.Add(1)
		metrics.MessagesRelayed.WithLabelValues(sourceGuildID).Inc()
	}
}

func (e *Engine) handleEvent(sourceGuildID string, ev classify.Event) {
	source := e.cfg.Guild(sourceGuildID)
	if source == nil {
		return
	}
	if !e.cfg.Bridge.InterGuild.ShareableEvent(string(ev.Kind)) {
		return
	}

	for _, target := range e.cfg.EnabledGuilds() {
		if sameGuild(source, target) {
			continue
		}
		text := e.renderer.Event(ev, source, target)
		if text == "" {
			metrics.MessagesDropped.WithLabelValues("render").Inc()
			continue
		}
		e.queue.Enqueue(queue.Item{
			Kind:          queue.KindEvent,
			TargetGuildID: target.ID,
			SourceGuildID: sourceGuildID,
			Text:          text,
		})
	}
	log.Printf("[interguild] shared event guild=%s kind=%s", sourceGuildID, ev.Kind)
}

// sameGuild guards against fan-out back into the source even when two
// config entries alias the same guild under a different id.
func sameGuild(a, b *config.Guild) bool {
	if a.ID == b.ID {
		return true
	}
	if a.Name != "" && strings.EqualFold(a.Name, b.Name) {
		return true
	}
	if a.Tag != "" && strings.EqualFold(a.Tag, b.Tag) {
		return true
	}
	return false
}

func looksRelayed(message string) bool {
	for _, re := range relayFormats {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}
