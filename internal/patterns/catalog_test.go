package patterns

import "testing"

func TestNewDefaultCatalog(t *testing.T) {
	c := NewDefaultCatalog()
	if c == nil {
		t.Fatal("NewDefaultCatalog returned nil")
	}
	flavors := c.Flavors()
	want := map[string]bool{"hypixel": false, "generic": false}
	for _, f := range flavors {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("flavor %q missing from default catalog", f)
		}
	}
}

func TestRegister_BadPattern(t *testing.T) {
	c := NewCatalog()
	if err := c.Register("test", ClassEvent, "broken", `[unclosed`); err == nil {
		t.Fatal("Register accepted an invalid regexp")
	}
}

func TestMatch_GuildChat(t *testing.T) {
	c := NewDefaultCatalog()

	tests := []struct {
		name     string
		line     string
		wantKind string
		username string
		rank     string
		message  string
	}{
		{"plain", "Guild > Steve: hello there", "guild", "Steve", "", "hello there"},
		{"server rank prefix", "Guild > [MVP+] Steve: hi", "guild", "Steve", "", "hi"},
		{"guild rank suffix", "Guild > Steve [Officer]: hi", "guild", "Steve", "Officer", "hi"},
		{"both ranks", "Guild > [VIP] Alex_99 [Member]: yo", "guild", "Alex_99", "Member", "yo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := c.Match("hypixel", ClassGuildChat, tt.line)
			if !ok {
				t.Fatalf("Match(%q) = no match", tt.line)
			}
			if m.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", m.Kind, tt.wantKind)
			}
			if got := m.Group("username"); got != tt.username {
				t.Errorf("username = %q, want %q", got, tt.username)
			}
			if got := m.Group("rank"); got != tt.rank {
				t.Errorf("rank = %q, want %q", got, tt.rank)
			}
			if got := m.Group("message"); got != tt.message {
				t.Errorf("message = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestMatch_NoMatch(t *testing.T) {
	c := NewDefaultCatalog()

	lines := []string{
		"random server text",
		"Party > Steve: not guild chat",
		"Guild > Steve joined.", // event, not chat
	}
	for _, line := range lines {
		if _, ok := c.Match("hypixel", ClassGuildChat, line); ok {
			t.Errorf("Match(%q) matched guild chat, want no match", line)
		}
	}
}

func TestMatch_UnknownFlavorFallsBack(t *testing.T) {
	c := NewDefaultCatalog()

	m, ok := c.Match("someserver", ClassGuildChat, "Guild > Steve: hello")
	if !ok {
		t.Fatal("unknown flavor did not fall back to generic patterns")
	}
	if got := m.Group("username"); got != "Steve" {
		t.Errorf("username = %q, want %q", got, "Steve")
	}
}

func TestMatch_FirstPatternWins(t *testing.T) {
	c := NewCatalog()
	mustOK := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	mustOK(c.Register("test", ClassSystem, "first", `^hello`))
	mustOK(c.Register("test", ClassSystem, "second", `^hello world`))

	m, ok := c.Match("test", ClassSystem, "hello world")
	if !ok {
		t.Fatal("no match")
	}
	if m.Kind != "first" {
		t.Errorf("Kind = %q, want %q (registration order)", m.Kind, "first")
	}
}

func TestMatch_SystemErrors(t *testing.T) {
	c := NewDefaultCatalog()

	tests := []struct {
		line string
		kind string
	}{
		{"Can't find a player by the name of 'Nobody123'!", "command_error"},
		{"You cannot kick this player!", "command_error"},
		{"You do not have permission to use this command!", "command_error"},
		{"Blocked Spammer42.", "block"},
		{"Unblocked Spammer42.", "unblock"},
		{"Mod_1 has muted Troll99 for 7d", "guild_mute"},
		{"Mod_1 has muted the guild chat for 1h", "guild_mute_all"},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.line, func(t *testing.T) {
			m, ok := c.Match("hypixel", ClassSystem, tt.line)
			if !ok {
				t.Fatalf("Match(%q) = no match", tt.line)
			}
			if m.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", m.Kind, tt.kind)
			}
		})
	}
}
