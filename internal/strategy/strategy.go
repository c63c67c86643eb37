// Package strategy holds the server-flavor-specific hooks of a guild
// connection: the post-connect script that stabilizes a fresh session, the
// reconnect variant, and the first-gate inbound filter that decides whether
// a raw line is guild-related at all. The classifier only ever sees lines
// that pass the filter.
package strategy

import (
	"context"
	"time"

	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/gameclient"
)

// Strategy is implemented once per server flavor.
type Strategy interface {
	// OnConnect runs the post-login script. Script failure must not
	// invalidate the connection: implementations log and return.
	OnConnect(ctx context.Context, s gameclient.Session, g *config.Guild) error

	// OnReconnect runs after a successful reconnect.
	OnReconnect(ctx context.Context, s gameclient.Session, g *config.Guild) error

	// FilterInbound reports whether a raw line is guild-related and should
	// be classified.
	FilterInbound(raw string, g *config.Guild) bool
}

// ForFlavor returns the strategy for a server flavor. Unknown flavors get
// the pass-all generic strategy.
func ForFlavor(flavor string) Strategy {
	switch flavor {
	case "hypixel":
		return &Hypixel{}
	default:
		return &Generic{}
	}
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Generic is the flavor for servers the bridge knows nothing about: no
// bootstrap script, every line is handed to the classifier.
type Generic struct{}

func (*Generic) OnConnect(context.Context, gameclient.Session, *config.Guild) error {
	return nil
}

func (*Generic) OnReconnect(context.Context, gameclient.Session, *config.Guild) error {
	return nil
}

func (*Generic) FilterInbound(string, *config.Guild) bool {
	return true
}
