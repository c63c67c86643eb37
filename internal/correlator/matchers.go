package correlator

import (
	"strings"

	"github.com/guildlink/bridge-app/internal/classify"
)

// System kinds that mean the server refused a command outright. Any of them
// resolves the oldest pending command of a kind as failed, provided the
// record's target (when the server names one) agrees with the pending's.
var errorSystemKinds = map[string]bool{
	"command_error": true,
}

func defaultMatchers() map[Kind]Matcher {
	return map[Kind]Matcher{
		KindInvite:  matchInvite,
		KindKick:    matchKick,
		KindPromote: matchRankChange(classify.EventPromote),
		KindDemote:  matchRankChange(classify.EventDemote),
		KindSetRank: matchSetRank,
		KindMute:    matchMute,
		KindUnmute:  matchUnmute,
		KindBlock:   matchBlock,
		KindUnblock: matchUnblock,
	}
}

// targetAgrees accepts when either side names no target, or both name the
// same one. Server feedback does not always echo the username.
func targetAgrees(pendingTarget, recordTarget string) bool {
	if pendingTarget == "" || recordTarget == "" {
		return true
	}
	return strings.EqualFold(pendingTarget, recordTarget)
}

// systemError resolves a pending as failed when rec is refusal feedback
// aimed at the pending's target.
func systemError(p Pending, rec classify.Record) (Result, bool) {
	sys, ok := rec.(classify.System)
	if !ok || !errorSystemKinds[sys.Kind] {
		return Result{}, false
	}
	if !targetAgrees(p.Target, sys.Target) {
		return Result{}, false
	}
	return Result{Success: false, Type: TypeCommandResult, Err: sys.Payload}, true
}

func matchInvite(p Pending, rec classify.Record) (Result, bool) {
	if ev, ok := rec.(classify.Event); ok {
		if ev.Kind == classify.EventInvite && targetAgrees(p.Target, ev.Target) {
			return Result{Success: true, Type: TypeCommandResult, Message: ev.Raw()}, true
		}
		return Result{}, false
	}
	return systemError(p, rec)
}

func matchKick(p Pending, rec classify.Record) (Result, bool) {
	if ev, ok := rec.(classify.Event); ok {
		if ev.Kind == classify.EventKick && targetAgrees(p.Target, ev.Target) {
			return Result{Success: true, Type: TypeCommandResult, Message: ev.Raw()}, true
		}
		return Result{}, false
	}
	return systemError(p, rec)
}

func matchRankChange(kind classify.EventKind) Matcher {
	return func(p Pending, rec classify.Record) (Result, bool) {
		if ev, ok := rec.(classify.Event); ok {
			if ev.Kind == kind && targetAgrees(p.Target, ev.Target) {
				return Result{Success: true, Type: TypeCommandResult, Message: ev.Raw()}, true
			}
			return Result{}, false
		}
		return systemError(p, rec)
	}
}

// matchSetRank accepts either direction: the server reports a setrank as a
// promotion or a demotion depending on where the target started.
func matchSetRank(p Pending, rec classify.Record) (Result, bool) {
	if ev, ok := rec.(classify.Event); ok {
		if (ev.Kind == classify.EventPromote || ev.Kind == classify.EventDemote) &&
			targetAgrees(p.Target, ev.Target) {
			return Result{Success: true, Type: TypeCommandResult, Message: ev.Raw()}, true
		}
		return Result{}, false
	}
	return systemError(p, rec)
}

func matchMute(p Pending, rec classify.Record) (Result, bool) {
	sys, ok := rec.(classify.System)
	if !ok {
		return Result{}, false
	}
	switch sys.Kind {
	case "guild_mute":
		if targetAgrees(p.Target, sys.Target) {
			return Result{Success: true, Type: TypeCommandResult, Message: sys.Raw()}, true
		}
	case "guild_mute_all":
		// Global mutes carry no per-player target.
		if p.Target == "" || strings.EqualFold(p.Target, "everyone") {
			return Result{Success: true, Type: TypeCommandResult, Message: sys.Raw()}, true
		}
	}
	return systemError(p, rec)
}

func matchUnmute(p Pending, rec classify.Record) (Result, bool) {
	sys, ok := rec.(classify.System)
	if !ok {
		return Result{}, false
	}
	switch sys.Kind {
	case "guild_unmute":
		if targetAgrees(p.Target, sys.Target) {
			return Result{Success: true, Type: TypeCommandResult, Message: sys.Raw()}, true
		}
	case "guild_unmute_all":
		if p.Target == "" || strings.EqualFold(p.Target, "everyone") {
			return Result{Success: true, Type: TypeCommandResult, Message: sys.Raw()}, true
		}
	}
	return systemError(p, rec)
}

func matchBlock(p Pending, rec classify.Record) (Result, bool) {
	sys, ok := rec.(classify.System)
	if !ok {
		return Result{}, false
	}
	if sys.Kind == "block" && targetAgrees(p.Target, sys.Target) {
		return Result{Success: true, Type: TypeCommandResult, Message: sys.Raw()}, true
	}
	return systemError(p, rec)
}

func matchUnblock(p Pending, rec classify.Record) (Result, bool) {
	sys, ok := rec.(classify.System)
	if !ok {
		return Result{}, false
	}
	if sys.Kind == "unblock" && targetAgrees(p.Target, sys.Target) {
		return Result{Success: true, Type: TypeCommandResult, Message: sys.Raw()}, true
	}
	return systemError(p, rec)
}
