package bridge

import (
	"testing"

	"github.com/guildlink/bridge-app/internal/config"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "Steve", true},
		{"with digits", "Alex_99", true},
		{"minimum length", "abc", true},
		{"maximum length", "abcdefgh12345678", true},
		{"too short", "ab", false},
		{"too long", "abcdefgh123456789", false},
		{"space injection", "Steve evil", false},
		{"command injection", "Steve;/op", false},
		{"slash", "/g", false},
		{"empty", "", false},
		{"unicode", "Stévé", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateUsername(%q) err = %v, want valid=%v", tt.input, err, tt.valid)
			}
		})
	}
}

func TestValidateDuration(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"7d", true},
		{"1h", true},
		{"30m", true},
		{"10s", true},
		{"1h30m", true},
		{"1d12h", true},
		{"", false},
		{"7", false},
		{"d", false},
		{"7w", false},
		{"7d extra", false},
		{"-7d", false},
	}
	for _, tt := range tests {
		err := ValidateDuration(tt.input)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateDuration(%q) err = %v, want valid=%v", tt.input, err, tt.valid)
		}
	}
}

func TestValidateRank(t *testing.T) {
	g := &config.Guild{ID: "alpha", Ranks: []string{"Member", "Officer"}}

	if err := ValidateRank(g, "Officer"); err != nil {
		t.Errorf("configured rank rejected: %v", err)
	}
	if err := ValidateRank(g, "officer"); err != nil {
		t.Errorf("rank check not case-insensitive: %v", err)
	}
	if err := ValidateRank(g, "GuildMaster"); err == nil {
		t.Error("unconfigured rank accepted")
	}
	if err := ValidateRank(g, ""); err == nil {
		t.Error("empty rank accepted")
	}
}

func TestValidateTarget(t *testing.T) {
	if err := ValidateTarget("everyone"); err != nil {
		t.Errorf("'everyone' rejected: %v", err)
	}
	if err := ValidateTarget("Steve"); err != nil {
		t.Errorf("username rejected: %v", err)
	}
	if err := ValidateTarget("every one"); err == nil {
		t.Error("malformed target accepted")
	}
}
