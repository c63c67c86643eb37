package bridge

import (
	"fmt"
	"regexp"

	"github.com/guildlink/bridge-app/internal/config"
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`)
	durationRe = regexp.MustCompile(`^(\d+[smhd])+$`)
)

// ValidateUsername checks that a player name is safe to interpolate into a
// chat command. Game accounts are 3 to 16 word characters.
func ValidateUsername(name string) error {
	if !usernameRe.MatchString(name) {
		return fmt.Errorf("invalid username %q", name)
	}
	return nil
}

// ValidateDuration checks a mute duration string such as "7d" or "1h30m".
func ValidateDuration(d string) error {
	if !durationRe.MatchString(d) {
		return fmt.Errorf("invalid duration %q", d)
	}
	return nil
}

// ValidateRank checks a rank name against the guild's configured rank list.
// The configured list is authoritative; anything else is rejected before it
// reaches the game server.
func ValidateRank(g *config.Guild, rank string) error {
	if rank == "" {
		return fmt.Errorf("rank is required")
	}
	if !g.HasRank(rank) {
		return fmt.Errorf("unknown rank %q for guild %s", rank, g.ID)
	}
	return nil
}

// ValidateTarget accepts a username or the literal "everyone" (global
// mute/unmute).
func ValidateTarget(target string) error {
	if target == "everyone" {
		return nil
	}
	return ValidateUsername(target)
}
