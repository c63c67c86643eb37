// Package patterns holds the compiled regex catalog the classifier runs raw
// server text through. Patterns are grouped per server flavor into ordered
// classes (guild chat, officer chat, events, system, ignore); within a class
// the first match wins. Additional patterns can be registered at runtime;
// lookups are read-locked so the catalog is safe to share across connection
// goroutines.
package patterns

import (
	"fmt"
	"regexp"
	"sync"
)

// Class selects one of the ordered pattern lists of a flavor.
type Class int

const (
	ClassGuildChat Class = iota
	ClassOfficerChat
	ClassEvent
	ClassSystem
	ClassIgnore
)

// String returns the class name used in errors and logs.
func (c Class) String() string {
	switch c {
	case ClassGuildChat:
		return "guildChat"
	case ClassOfficerChat:
		return "officerChat"
	case ClassEvent:
		return "event"
	case ClassSystem:
		return "system"
	case ClassIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Pattern is one compiled entry: the kind label names what a match means
// ("join", "promote", "command_error", ...).
type Pattern struct {
	Kind string
	re   *regexp.Regexp
}

// Match is the result of a successful lookup: the matched pattern's kind and
// its named capture groups. Groups that did not participate are absent.
type Match struct {
	Kind   string
	Groups map[string]string
}

// Group returns a named capture group, or "" if absent.
func (m Match) Group(name string) string {
	return m.Groups[name]
}

type flavorSet struct {
	classes map[Class][]Pattern
}

// Catalog maps server flavors to their pattern sets.
type Catalog struct {
	mu      sync.RWMutex
	flavors map[string]*flavorSet
}

// NewCatalog returns an empty catalog. Most callers want NewDefaultCatalog.
func NewCatalog() *Catalog {
	return &Catalog{flavors: make(map[string]*flavorSet)}
}

// NewDefaultCatalog returns a catalog preloaded with the built-in flavor
// definitions.
func NewDefaultCatalog() *Catalog {
	c := NewCatalog()
	registerHypixel(c)
	return c
}

// Register compiles expr and appends it to the flavor's class list. Order of
// registration is match order. Safe to call while the catalog is being read.
func (c *Catalog) Register(flavor string, class Class, kind string, expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("patterns: %s/%s %q: %w", flavor, class, kind, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fs, ok := c.flavors[flavor]
	if !ok {
		fs = &flavorSet{classes: make(map[Class][]Pattern)}
		c.flavors[flavor] = fs
	}
	fs.classes[class] = append(fs.classes[class], Pattern{Kind: kind, re: re})
	return nil
}

// mustRegister is used for the built-in definitions, which are compile-time
// constants and must never fail.
func (c *Catalog) mustRegister(flavor string, class Class, kind string, expr string) {
	if err := c.Register(flavor, class, kind, expr); err != nil {
		panic(err)
	}
}

// Match runs line through the flavor's class list in registration order and
// returns the first hit. Unknown flavors fall back to "generic" and, failing
// that, report no match.
func (c *Catalog) Match(flavor string, class Class, line string) (Match, bool) {
	c.mu.RLock()
	fs, ok := c.flavors[flavor]
	if !ok {
		fs, ok = c.flavors["generic"]
	}
	if !ok {
		c.mu.RUnlock()
		return Match{}, false
	}
	list := fs.classes[class]
	c.mu.RUnlock()

	for _, p := range list {
		groups := p.re.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		m := Match{Kind: p.Kind, Groups: make(map[string]string)}
		for i, name := range p.re.SubexpNames() {
			if name != "" && i < len(groups) && groups[i] != "" {
				m.Groups[name] = groups[i]
			}
		}
		return m, true
	}
	return Match{}, false
}

// Flavors returns the registered flavor names.
func (c *Catalog) Flavors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.flavors))
	for name := range c.flavors {
		out = append(out, name)
	}
	return out
}
