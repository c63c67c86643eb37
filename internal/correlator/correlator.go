// Package correlator matches externally issued moderation commands with the
// textual feedback the game server prints for them. A pending command is
// registered before dispatch; every classified Event/System record for the
// guild is then offered to the pending list in FIFO order until a per-kind
// matcher claims it or the deadline passes. One record resolves at most one
// pending command.
package correlator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guildlink/bridge-app/internal/classify"
)

// Kind names the command being correlated.
type Kind string

const (
	KindInvite  Kind = "invite"
	KindKick    Kind = "kick"
	KindPromote Kind = "promote"
	KindDemote  Kind = "demote"
	KindSetRank Kind = "setrank"
	KindMute    Kind = "mute"
	KindUnmute  Kind = "unmute"
	KindBlock   Kind = "block"
	KindUnblock Kind = "unblock"
)

// ResultType classifies how a pending command completed.
type ResultType string

const (
	TypeCommandResult ResultType = "command_result"
	TypeTimeout       ResultType = "timeout"
	TypeCancelled     ResultType = "cancelled"
)

// Result is the completion value delivered to WaitForResult.
type Result struct {
	Success bool
	Type    ResultType
	Message string
	Err     string
}

// Pending is the read-only view of a registered command handed to matchers.
type Pending struct {
	ListenerID string
	GuildID    string
	Kind       Kind
	Target     string
	Command    string
}

// Matcher decides whether a record resolves a pending command of its kind,
// and with what result.
type Matcher func(p Pending, rec classify.Record) (Result, bool)

type pending struct {
	Pending
	deadline time.Time
	timer    *time.Timer
	ch       chan Result
}

// Correlator owns the pending map. Safe for concurrent use.
type Correlator struct {
	mu       sync.Mutex
	byGuild  map[string][]*pending // FIFO per guild
	byID     map[string]*pending
	matchers map[Kind]Matcher
}

// New returns a correlator with the default matcher set.
func New() *Correlator {
	return &Correlator{
		byGuild:  make(map[string][]*pending),
		byID:     make(map[string]*pending),
		matchers: defaultMatchers(),
	}
}

// RegisterMatcher replaces the matcher for a kind. Intended for tests and
// flavor-specific overrides; call before serving.
func (c *Correlator) RegisterMatcher(kind Kind, m Matcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matchers[kind] = m
}

// CreateListener registers a pending command and returns its listener ID.
// The identity used for matching is {guildID, kind, target}; the ID only
// disambiguates concurrent identical commands.
func (c *Correlator) CreateListener(guildID string, kind Kind, target, command string, timeout time.Duration) string {
	p := &pending{
		Pending: Pending{
			ListenerID: uuid.NewString(),
			GuildID:    guildID,
			Kind:       kind,
			Target:     target,
			Command:    command,
		},
		deadline: time.Now().Add(timeout),
		ch:       make(chan Result, 1),
	}

	c.mu.Lock()
	c.byID[p.ListenerID] = p
	c.byGuild[guildID] = append(c.byGuild[guildID], p)
	c.mu.Unlock()

	p.timer = time.AfterFunc(timeout, func() { c.expire(p.ListenerID) })
	return p.ListenerID
}

// WaitForResult blocks until the pending command completes (match, timeout
// or cancellation). Unknown IDs complete immediately as cancelled.
func (c *Correlator) WaitForResult(listenerID string) Result {
	c.mu.Lock()
	p := c.byID[listenerID]
	c.mu.Unlock()
	if p == nil {
		return Result{Success: false, Type: TypeCancelled, Err: "unknown listener"}
	}
	return <-p.ch
}

// CancelListener completes a pending command as cancelled. Completion is
// synchronous: the reply channel holds the result before this returns.
func (c *Correlator) CancelListener(listenerID string) {
	c.complete(listenerID, Result{Success: false, Type: TypeCancelled})
}

func (c *Correlator) expire(listenerID string) {
	c.complete(listenerID, Result{Success: false, Type: TypeTimeout, Err: "no matching server reply before deadline"})
}

// complete removes the pending entry and delivers res, if it is still live.
func (c *Correlator) complete(listenerID string, res Result) {
	c.mu.Lock()
	p := c.byID[listenerID]
	if p == nil {
		c.mu.Unlock()
		return
	}
	delete(c.byID, listenerID)
	c.removeFromGuild(p)
	c.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.ch <- res
}

// removeFromGuild must be called with mu held.
func (c *Correlator) removeFromGuild(p *pending) {
	list := c.byGuild[p.GuildID]
	for i, q := range list {
		if q == p {
			c.byGuild[p.GuildID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(c.byGuild[p.GuildID]) == 0 {
		delete(c.byGuild, p.GuildID)
	}
}

// PendingCount returns the number of outstanding commands for a guild.
func (c *Correlator) PendingCount(guildID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byGuild[guildID])
}

// Observe offers a classified record to the guild's pending commands in
// FIFO order. The first matcher claim wins and removes its entry; the rest
// stay pending. Chat records never resolve commands.
func (c *Correlator) Observe(guildID string, rec classify.Record) {
	switch rec.(type) {
	case classify.Event, classify.System:
	default:
		return
	}

	c.mu.Lock()
	list := append([]*pending(nil), c.byGuild[guildID]...)
	c.mu.Unlock()

	for _, p := range list {
		matcher := c.matcherFor(p.Kind)
		if matcher == nil {
			continue
		}
		if res, ok := matcher(p.Pending, rec); ok {
			c.complete(p.ListenerID, res)
			return
		}
	}
}

func (c *Correlator) matcherFor(kind Kind) Matcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matchers[kind]
}
