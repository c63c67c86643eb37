package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/guildlink/bridge-app/internal/audit"
	"github.com/guildlink/bridge-app/internal/blacklist"
	"github.com/guildlink/bridge-app/internal/bridge"
	"github.com/guildlink/bridge-app/internal/classify"
	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/correlator"
	"github.com/guildlink/bridge-app/internal/gameclient"
	"github.com/guildlink/bridge-app/internal/guild"
	"github.com/guildlink/bridge-app/internal/interguild"
	"github.com/guildlink/bridge-app/internal/messaging"
	"github.com/guildlink/bridge-app/internal/metrics"
	"github.com/guildlink/bridge-app/internal/patterns"
	"github.com/guildlink/bridge-app/internal/queue"
	"github.com/guildlink/bridge-app/internal/ratelimit"
	"github.com/guildlink/bridge-app/internal/strategy"
	"github.com/guildlink/bridge-app/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	migrationsPath := flag.String("migrations", "migrations", "path to the SQL migrations directory")
	flag.Parse()

	if v := os.Getenv("GUILDLINK_CONFIG"); v != "" {
		*configPath = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	enabled := cfg.EnabledGuilds()
	log.Printf("Guildlink bridge starting")
	log.Printf("  guilds:       %d enabled of %d configured", len(enabled), len(cfg.Guilds))
	log.Printf("  inter_guild:  %v", cfg.Bridge.InterGuild.Enabled)
	log.Printf("  nats_url:     %s", cfg.NATS.URL)
	log.Printf("  redis_addr:   %s", cfg.Redis.Addr)
	log.Printf("  metrics_addr: %s", cfg.Metrics.Addr)

	// --- NATS ---
	natsConfig := messaging.DefaultConfig()
	if cfg.NATS.URL != "" {
		natsConfig.URL = cfg.NATS.URL
	}
	if cfg.NATS.Name != "" {
		natsConfig.Name = cfg.NATS.Name
	}
	natsClient, err := messaging.Connect(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis (optional: command limiter, blacklist mirror) ---
	var (
		limiter *ratelimit.Limiter
		blStore *blacklist.Store
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("redis unreachable at %s, command limiting and blacklist mirroring disabled: %v", cfg.Redis.Addr, err)
		} else {
			limiter = ratelimit.NewLimiter(rdb)
			blStore = blacklist.NewStore(rdb)
			for _, g := range enabled {
				if blocked, err := blStore.List(context.Background(), g.ID); err == nil && len(blocked) > 0 {
					log.Printf("[blacklist] guild=%s carrying %d active blocks", g.ID, len(blocked))
				}
			}
		}
	}

	// --- PostgreSQL (optional: moderation audit) ---
	var auditor *audit.Store
	if cfg.Database.URL != "" {
		if err := runMigrations(*migrationsPath, cfg.Database.URL); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("ping postgres: %v", err)
		}
		auditor = audit.NewStore(db)
		defer db.Close()
	}

	// --- Metrics ---
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Printf("[metrics] listening on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Printf("[metrics] server error: %v", err)
			}
		}()
	}

	// --- Core pipeline ---
	catalog := patterns.NewDefaultCatalog()
	classifier := classify.New(catalog, cfg.Features.ChatParser.PreserveColors)

	sup := supervisor.New(cfg, func(g *config.Guild) *guild.Connection {
		return guild.NewConnection(g, gameclient.Dial, strategy.ForFlavor(g.Server.ServerName), classifier)
	})

	q := queue.New(sup, queue.Options{})
	q.Start()

	engine := interguild.New(cfg, q)
	engine.Start()

	corr := correlator.New()

	svc := bridge.New(cfg, natsClient, sup, corr, limiter, auditor, blStore)
	if err := svc.Start(); err != nil {
		log.Fatalf("subscribe command requests: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	err = sup.StartAll(ctx)
	cancel()
	if err != nil {
		log.Fatalf("start guild connections: %v", err)
	}

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case ev := <-sup.Events():
			if ev.Record != nil {
				corr.Observe(ev.GuildID, ev.Record)
				engine.HandleRecord(ev.GuildID, ev.Record)
				svc.PublishRecord(ev.GuildID, ev.Record)
			}
			if ev.Conn != nil {
				svc.PublishStatus(ev.GuildID, ev.Conn)
			}

		case sig := <-sigCh:
			log.Printf("received signal %v, shutting down...", sig)
			sup.StopAll()
			engine.Stop()
			q.Stop()
			natsClient.Close()
			return
		}
	}
}

// runMigrations applies pending schema migrations before the audit store is
// opened.
func runMigrations(dir, databaseURL string) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
