package bridge

import (
	"fmt"
	"strings"

	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/correlator"
)

// CommandRequest is the JSON payload consumed from the command request
// subject. Guild may be an ID or a display name.
type CommandRequest struct {
	RequestID string `json:"request_id"`
	Guild     string `json:"guild"`
	Kind      string `json:"kind"`
	Target    string `json:"target,omitempty"`
	Rank      string `json:"rank,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Requester string `json:"requester"`
	Command   string `json:"command,omitempty"` // raw line for kind "execute"
	Admin     bool   `json:"admin,omitempty"`   // required for kind "execute"
}

// KindExecute dispatches a raw allow-listed command without correlation.
const KindExecute = "execute"

// buildCommand validates the request against the guild's configuration and
// returns the chat line to send plus the correlator kind that will claim the
// server's reply. Kind "execute" returns an empty correlator kind; it is
// dispatched without a listener.
func buildCommand(g *config.Guild, req *CommandRequest) (string, correlator.Kind, error) {
	switch req.Kind {
	case "invite":
		if err := ValidateUsername(req.Target); err != nil {
			return "", "", err
		}
		return "/g invite " + req.Target, correlator.KindInvite, nil

	case "kick":
		if err := ValidateUsername(req.Target); err != nil {
			return "", "", err
		}
		reason := req.Reason
		if reason == "" {
			reason = "removed by moderation"
		}
		return "/g kick " + req.Target + " " + reason, correlator.KindKick, nil

	case "promote":
		if err := ValidateUsername(req.Target); err != nil {
			return "", "", err
		}
		return "/g promote " + req.Target, correlator.KindPromote, nil

	case "demote":
		if err := ValidateUsername(req.Target); err != nil {
			return "", "", err
		}
		return "/g demote " + req.Target, correlator.KindDemote, nil

	case "setrank":
		if err := ValidateUsername(req.Target); err != nil {
			return "", "", err
		}
		if err := ValidateRank(g, req.Rank); err != nil {
			return "", "", err
		}
		return "/g setrank " + req.Target + " " + req.Rank, correlator.KindSetRank, nil

	case "mute":
		if err := ValidateTarget(req.Target); err != nil {
			return "", "", err
		}
		if err := ValidateDuration(req.Duration); err != nil {
			return "", "", err
		}
		return "/g mute " + req.Target + " " + req.Duration, correlator.KindMute, nil

	case "unmute":
		if err := ValidateTarget(req.Target); err != nil {
			return "", "", err
		}
		return "/g unmute " + req.Target, correlator.KindUnmute, nil

	case "block", "blacklist":
		if err := ValidateUsername(req.Target); err != nil {
			return "", "", err
		}
		return "/block add " + req.Target, correlator.KindBlock, nil

	case "unblock":
		if err := ValidateUsername(req.Target); err != nil {
			return "", "", err
		}
		return "/block remove " + req.Target, correlator.KindUnblock, nil

	case KindExecute:
		if !req.Admin {
			return "", "", fmt.Errorf("execute: requires admin privileges")
		}
		line := strings.TrimSpace(req.Command)
		if line == "" {
			return "", "", fmt.Errorf("execute: empty command")
		}
		// Guild management must go through the typed kinds so results get
		// correlated and audited with a target.
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "/g ") || strings.HasPrefix(lower, "/guild ") ||
			lower == "/g" || lower == "/guild" {
			return "", "", fmt.Errorf("execute: guild commands must use a typed kind")
		}
		if !g.CommandAllowed(line) {
			return "", "", fmt.Errorf("execute: command not on allow-list for guild %s", g.ID)
		}
		return line, "", nil
	}
	return "", "", fmt.Errorf("unknown command kind %q", req.Kind)
}
