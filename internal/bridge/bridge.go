// Package bridge is the external control plane surface: it streams
// classified chat and events out over NATS, reports connection status, and
// serves moderation command requests by dispatching allow-listed chat
// commands into guilds and correlating the server's textual reply.
package bridge

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/guildlink/bridge-app/internal/audit"
	"github.com/guildlink/bridge-app/internal/blacklist"
	"github.com/guildlink/bridge-app/internal/classify"
	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/correlator"
	"github.com/guildlink/bridge-app/internal/guild"
	"github.com/guildlink/bridge-app/internal/messaging"
	"github.com/guildlink/bridge-app/internal/metrics"
	"github.com/guildlink/bridge-app/internal/ratelimit"
	"github.com/guildlink/bridge-app/internal/supervisor"

	"github.com/google/uuid"
)

// CommandTimeout bounds how long a dispatched command waits for the game
// server's reply before completing as a timeout.
const CommandTimeout = 15 * time.Second

// Dispatcher is the slice of the connection supervisor the bridge needs.
type Dispatcher interface {
	IsConnected(guildID string) bool
	ExecuteCommand(guildID, command string) error
}

// blockStore is the slice of the Redis blacklist the bridge consults and
// mirrors into.
type blockStore interface {
	Block(ctx context.Context, guildID, username, reason string, duration time.Duration) error
	Unblock(ctx context.Context, guildID, username string) error
	IsBlocked(ctx context.Context, guildID, username string) (bool, time.Duration, string, error)
}

// auditLog is the slice of the PostgreSQL audit store the bridge writes to
// and, when Redis is absent, throttles from.
type auditLog interface {
	Record(ctx context.Context, a *audit.Action) error
	CountRecent(ctx context.Context, guildID, requester string, window time.Duration) (int, error)
}

// Service wires NATS, the correlator and the optional stores together.
// Limiter, audit and blacklist are nil-able: a missing Redis or PostgreSQL
// degrades moderation bookkeeping, never chat.
type Service struct {
	cfg       *config.Config
	nats      *messaging.Client
	sup       Dispatcher
	corr      *correlator.Correlator
	limiter   *ratelimit.Limiter
	auditor   auditLog
	blacklist blockStore
}

// New assembles the bridge service. limiter, auditor and bl may be nil.
func New(cfg *config.Config, nc *messaging.Client, sup Dispatcher, corr *correlator.Correlator,
	limiter *ratelimit.Limiter, auditor *audit.Store, bl *blacklist.Store) *Service {
	s := &Service{
		cfg:     cfg,
		nats:    nc,
		sup:     sup,
		corr:    corr,
		limiter: limiter,
	}
	if auditor != nil {
		s.auditor = auditor
	}
	if bl != nil {
		s.blacklist = bl
	}
	return s
}

// Start subscribes to the command request subject. Each request is served on
// its own goroutine because typed commands block on correlation.
func (s *Service) Start() error {
	return s.nats.SubscribeCommandRequest(func(data []byte) {
		go s.handleRequest(data)
	})
}

// PublishRecord streams a classified record out on the guild's subjects.
// Called for every record the main loop receives; unknown record types are
// ignored.
func (s *Service) PublishRecord(guildID string, rec classify.Record) {
	g := s.cfg.Guild(guildID)
	if g == nil {
		return
	}
	switch r := rec.(type) {
	case classify.GuildChat:
		card := ChatCard{
			GuildID:   g.ID,
			GuildName: g.Name,
			GuildTag:  g.Tag,
			Subtype:   string(r.Subtype),
			Username:  r.Username,
			Rank:      r.Rank,
			Message:   r.Message,
			Timestamp: time.Now().UTC(),
		}
		data, err := json.Marshal(card)
		if err != nil {
			return
		}
		if r.Subtype == classify.SubtypeOfficer {
			s.publish("officer", guildID, func() error { return s.nats.PublishOfficer(guildID, data) })
		} else {
			s.publish("chat", guildID, func() error { return s.nats.PublishChat(guildID, data) })
		}

	case classify.Event:
		card := EventCard{
			GuildID:   g.ID,
			GuildName: g.Name,
			Kind:      string(r.Kind),
			Actor:     r.Actor,
			Target:    r.Target,
			FromRank:  r.FromRank,
			ToRank:    r.ToRank,
			Reason:    r.Reason,
			Count:     r.Count,
			Level:     r.Level,
			Members:   r.Members,
			Payload:   r.Payload,
			Timestamp: time.Now().UTC(),
		}
		data, err := json.Marshal(card)
		if err != nil {
			return
		}
		s.publish("event", guildID, func() error { return s.nats.PublishEvent(guildID, data) })
	}
}

// PublishStatus streams a connection lifecycle change out on the status
// subject.
func (s *Service) PublishStatus(guildID string, ev *guild.Event) {
	g := s.cfg.Guild(guildID)
	if g == nil {
		return
	}
	detail := ev.Reason
	if detail == "" && ev.Err != nil {
		detail = ev.Err.Error()
	}
	card := StatusCard{
		GuildID:   g.ID,
		GuildName: g.Name,
		Status:    string(ev.Type),
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(card)
	if err != nil {
		return
	}
	s.publish("status", guildID, func() error { return s.nats.PublishStatus(guildID, data) })
}

func (s *Service) publish(what, guildID string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("[bridge] publish %s guild=%s: %v", what, guildID, err)
	}
}

func (s *Service) handleRequest(data []byte) {
	var req CommandRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[bridge] bad command request: %v", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	start := time.Now()
	res := s.serve(&req)
	res.RequestID = req.RequestID
	res.Kind = req.Kind
	res.Target = req.Target
	res.Timestamp = time.Now().UTC()

	metrics.CommandDuration.Observe(time.Since(start).Seconds())
	metrics.CommandsTotal.WithLabelValues(req.Kind, outcomeOf(&res)).Inc()

	out, err := json.Marshal(res)
	if err != nil {
		log.Printf("[bridge] marshal result request=%s: %v", req.RequestID, err)
		return
	}
	if err := s.nats.PublishCommandResult(req.RequestID, out); err != nil {
		log.Printf("[bridge] publish result request=%s: %v", req.RequestID, err)
	}

	s.recordAudit(&req, &res)
}

// serve runs the request through rejection, rate limiting, dispatch and
// correlation, and returns the partially filled result card.
func (s *Service) serve(req *CommandRequest) CommandResultCard {
	ctx := context.Background()

	g := s.cfg.GuildByName(req.Guild)
	if g == nil || !g.Enabled {
		return rejected("", "unknown or disabled guild")
	}

	if req.Requester != "" && !s.allowRequester(ctx, g.ID, req.Requester) {
		return CommandResultCard{
			GuildID: g.ID,
			Success: false,
			Type:    "rate_limited",
			Error:   "too many commands, slow down",
		}
	}

	line, kind, err := buildCommand(g, req)
	if err != nil {
		return rejected(g.ID, err.Error())
	}

	// Inviting a player the guild has blocked is always a mistake; catch it
	// before the game server does.
	if req.Kind == "invite" && s.blacklist != nil {
		blocked, _, reason, err := s.blacklist.IsBlocked(ctx, g.ID, req.Target)
		if err == nil && blocked {
			msg := "target is blocked for this guild"
			if reason != "" {
				msg += ": " + reason
			}
			return rejected(g.ID, msg)
		}
	}

	if !s.sup.IsConnected(g.ID) {
		return rejected(g.ID, "guild connection is offline")
	}

	// Raw execute has no correlatable feedback; success means dispatched.
	if kind == "" {
		if err := s.sup.ExecuteCommand(g.ID, line); err != nil {
			return CommandResultCard{GuildID: g.ID, Success: false, Type: "failed", Error: err.Error()}
		}
		return CommandResultCard{GuildID: g.ID, Success: true, Type: "command_result", Message: "dispatched"}
	}

	listenerID := s.corr.CreateListener(g.ID, kind, correlationTarget(req), line, CommandTimeout)
	if err := s.sup.ExecuteCommand(g.ID, line); err != nil {
		s.corr.CancelListener(listenerID)
		s.corr.WaitForResult(listenerID)
		return CommandResultCard{GuildID: g.ID, Success: false, Type: "failed", Error: err.Error()}
	}

	res := s.corr.WaitForResult(listenerID)
	card := CommandResultCard{
		GuildID: g.ID,
		Success: res.Success,
		Type:    string(res.Type),
		Message: res.Message,
		Error:   res.Err,
	}

	s.syncBlacklist(ctx, g.ID, req, &card)
	return card
}

// allowRequester throttles the external command surface per requester. With
// Redis the limiter is shared across bridge instances; without it the audit
// trail doubles as a local throttle. Both fail open.
func (s *Service) allowRequester(ctx context.Context, guildID, requester string) bool {
	limit := s.cfg.Bridge.RateLimit.Command.Limit
	window := s.cfg.Bridge.RateLimit.Command.Window()

	if s.limiter != nil {
		rule := ratelimit.RuleCommand
		rule.Limit = limit
		rule.Window = window
		allowed, _ := s.limiter.Allow(ctx, requester, rule)
		return allowed
	}

	if s.auditor != nil {
		count, err := s.auditor.CountRecent(ctx, guildID, requester, window)
		if err != nil {
			return true
		}
		return count < limit
	}

	return true
}

// correlationTarget is the target the server echoes back. Global mutes name
// no player.
func correlationTarget(req *CommandRequest) string {
	if req.Target == "everyone" {
		return ""
	}
	return req.Target
}

// syncBlacklist mirrors successful block/unblock commands into Redis.
func (s *Service) syncBlacklist(ctx context.Context, guildID string, req *CommandRequest, card *CommandResultCard) {
	if s.blacklist == nil || !card.Success {
		return
	}
	switch req.Kind {
	case "block", "blacklist":
		if err := s.blacklist.Block(ctx, guildID, req.Target, req.Reason, 0); err != nil {
			log.Printf("[bridge] blacklist sync block guild=%s target=%s: %v", guildID, req.Target, err)
		}
	case "unblock":
		if err := s.blacklist.Unblock(ctx, guildID, req.Target); err != nil {
			log.Printf("[bridge] blacklist sync unblock guild=%s target=%s: %v", guildID, req.Target, err)
		}
	}
}

// outcomeOf flattens a result card into the audit/metrics outcome label.
func outcomeOf(res *CommandResultCard) string {
	switch res.Type {
	case "command_result":
		if res.Success {
			return "success"
		}
		return "failed"
	case "timeout":
		return "timeout"
	case "rejected", "cancelled":
		return "rejected"
	case "rate_limited":
		return "rate_limited"
	}
	return "failed"
}

func (s *Service) recordAudit(req *CommandRequest, res *CommandResultCard) {
	if s.auditor == nil {
		return
	}
	outcome := outcomeOf(res)

	detail := map[string]any{}
	if req.Rank != "" {
		detail["rank"] = req.Rank
	}
	if req.Duration != "" {
		detail["duration"] = req.Duration
	}
	if res.Message != "" {
		detail["feedback"] = res.Message
	}
	if res.Error != "" {
		detail["error"] = res.Error
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.auditor.Record(ctx, &audit.Action{
		RequestID: req.RequestID,
		GuildID:   res.GuildID,
		Requester: req.Requester,
		Kind:      req.Kind,
		Target:    req.Target,
		Outcome:   outcome,
		Detail:    detail,
	})
	if err != nil {
		log.Printf("[bridge] audit request=%s: %v", req.RequestID, err)
	}
}

func rejected(guildID, msg string) CommandResultCard {
	return CommandResultCard{GuildID: guildID, Success: false, Type: "rejected", Error: msg}
}

var (
	_ Dispatcher = (*supervisor.Supervisor)(nil)
	_ blockStore = (*blacklist.Store)(nil)
	_ auditLog   = (*audit.Store)(nil)
)
