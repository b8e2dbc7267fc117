package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	orchestrator "github.com/tanpawarit/table-reservation-agent/agent/agents/orchestrator"
	"github.com/tanpawarit/table-reservation-agent/agent/llm"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
	"github.com/tanpawarit/table-reservation-agent/agent/tool"
	configx "github.com/tanpawarit/table-reservation-agent/pkg/config"
	qstashx "github.com/tanpawarit/table-reservation-agent/pkg/qstash"
	"github.com/tanpawarit/table-reservation-agent/reservation"
)

const (
	sessionStoreMemory  = "memory"
	sessionStoreUpstash = "upstash"
)

type AppConfig struct {
	DBDriver      string        `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN         string        `envconfig:"DB_DSN" default:"file:tablebot.db?_busy_timeout=5000"`
	SessionStore  string        `envconfig:"SESSION_STORE" default:"memory"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CatalogTTL    time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"10m"`
	EventsEnabled bool          `envconfig:"QSTASH_ENABLED" default:"false"`
	SeedFile      string        `envconfig:"SEED_FILE" default:"data/restaurants.yaml"`
}

// app is everything a command needs, built from the environment.
type app struct {
	cfg      AppConfig
	db       *reservation.BunStore
	store    reservation.Store
	sessions statex.Store
	events   *qstashx.Client
	agent    *orchestrator.Orchestrator
}

func loadAppConfig() (AppConfig, error) {
	cfg, err := configx.New[AppConfig]("")
	if err != nil {
		return AppConfig{}, fmt.Errorf("load app config: %w", err)
	}
	return *cfg, nil
}

func openDB(ctx context.Context, cfg AppConfig, migrate bool) (*reservation.BunStore, error) {
	db, err := reservation.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	store := reservation.NewBunStore(db)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

func openSessions(cfg AppConfig) (statex.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SessionStore)) {
	case "", sessionStoreMemory:
		return statex.NewMemoryStore(cfg.SessionTTL), nil
	case sessionStoreUpstash:
		redisCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, fmt.Errorf("load upstash redis config: %w", err)
		}
		return statex.NewUpstashRedisStore(*redisCfg, statex.WithTTL(cfg.SessionTTL))
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// newApp opens the database and builds the agent. Callers must close it.
func newApp(ctx context.Context, migrate bool) (*app, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, err
	}

	db, err := openDB(ctx, cfg, migrate)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, store: reservation.NewCachedStore(db, cfg.CatalogTTL)}

	if a.sessions, err = openSessions(cfg); err != nil {
		a.Close()
		return nil, err
	}

	var routerOpts []tool.Option
	if cfg.EventsEnabled {
		qcfg, err := configx.New[qstashx.Config]("QSTASH")
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load qstash config: %w", err)
		}
		if a.events, err = qstashx.NewClient(*qcfg); err != nil {
			a.Close()
			return nil, err
		}
		routerOpts = append(routerOpts, tool.WithPublisher(a.events))
	}

	llmCfg, err := configx.New[llm.Config]("LLM")
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load llm config: %w", err)
	}
	chat, err := llm.New(ctx, *llmCfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	agentCfg, err := configx.New[orchestrator.Config]("AGENT")
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load agent config: %w", err)
	}
	a.agent, err = orchestrator.New(a.sessions, chat, tool.NewRouter(a.store, routerOpts...), *agentCfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("session_store", cfg.SessionStore).
		Str("llm_provider", llmCfg.Provider).
		Str("llm_model", llmCfg.Model).
		Bool("events", a.events != nil).
		Msg("app: initialised")
	return a, nil
}

func (a *app) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("app: close database")
	}
}
