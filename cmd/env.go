package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lumarank/lumarank/internal/fetcher"
	"github.com/lumarank/lumarank/internal/llm"
	"github.com/lumarank/lumarank/internal/pipeline"
	"github.com/lumarank/lumarank/internal/resilience"
	"github.com/lumarank/lumarank/internal/snapshot"
	"github.com/lumarank/lumarank/internal/store"
	anthropicpkg "github.com/lumarank/lumarank/pkg/anthropic"
	openaipkg "github.com/lumarank/lumarank/pkg/openai"
)

const defaultSQLiteDSN = "lumarank.db"

// storeEnv holds the opened backends. Either field may be nil when the
// command did not ask for it.
type storeEnv struct {
	Tenants store.TenantStore
	Reports store.ReportStore

	closers []func() error
}

// Close releases every backend once.
func (se *storeEnv) Close() {
	for i := len(se.closers) - 1; i >= 0; i-- {
		if err := se.closers[i](); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
	se.closers = nil
}

func sqliteDSN() string {
	if cfg.Store.Driver == "sqlite" && cfg.Store.DatabaseURL != "" {
		return cfg.Store.DatabaseURL
	}
	return defaultSQLiteDSN
}

// initStores opens the tenant and/or report backends. A single SQLite file
// serves both when both drivers are sqlite.
func initStores(ctx context.Context, tenants, reports bool) (*storeEnv, error) {
	env := &storeEnv{}
	var shared *store.SQLiteStore
	openSQLite := func() (*store.SQLiteStore, error) {
		if shared != nil {
			return shared, nil
		}
		st, err := store.NewSQLite(sqliteDSN())
		if err != nil {
			return nil, err
		}
		shared = st
		env.closers = append(env.closers, st.Close)
		return st, nil
	}

	if tenants {
		switch cfg.Store.Driver {
		case "sqlite":
			st, err := openSQLite()
			if err != nil {
				env.Close()
				return nil, err
			}
			env.Tenants = st
		case "postgres":
			st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
				MaxConns: cfg.Store.MaxConns,
				MinConns: cfg.Store.MinConns,
			})
			if err != nil {
				env.Close()
				return nil, err
			}
			env.Tenants = st
			env.closers = append(env.closers, st.Close)
		default:
			env.Close()
			return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
		}
	}

	if reports {
		switch cfg.Reports.Driver {
		case "sqlite":
			st, err := openSQLite()
			if err != nil {
				env.Close()
				return nil, err
			}
			env.Reports = st
		case "mongo":
			st, err := store.NewMongo(ctx, cfg.Reports.MongoURI, cfg.Reports.Database, cfg.Reports.Collection)
			if err != nil {
				env.Close()
				return nil, err
			}
			env.Reports = st
			env.closers = append(env.closers, st.Close)
		default:
			env.Close()
			return nil, eris.Errorf("unsupported reports driver: %s", cfg.Reports.Driver)
		}
	}
	return env, nil
}

// migrate creates tables and indexes on every opened backend.
func (se *storeEnv) migrate(ctx context.Context) error {
	if se.Tenants != nil {
		if err := se.Tenants.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate tenant store")
		}
	}
	if se.Reports != nil {
		if err := se.Reports.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate report store")
		}
	}
	return nil
}

// initProvider builds the configured chat provider behind a circuit breaker
// shared by every stage.
func initProvider() (llm.Provider, error) {
	var p llm.Provider
	switch cfg.LLM.Provider {
	case "anthropic":
		client := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		p = llm.NewAnthropic(client, cfg.Anthropic.Model)
	case "openai":
		client := openaipkg.NewClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL)
		p = llm.NewOpenAI(client, cfg.OpenAI.Model)
	default:
		return nil, eris.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}

	breaker := resilience.NewBreaker("llm",
		cfg.LLM.BreakerFailThreshold,
		time.Duration(cfg.LLM.BreakerResetTimeoutMs)*time.Millisecond,
	)
	zap.L().Info("llm provider ready", zap.String("provider", p.Name()))
	return llm.WithBreaker(p, breaker), nil
}

// initSnapshots returns nil when snapshots are disabled.
func initSnapshots(ctx context.Context) (snapshot.Store, error) {
	if !cfg.Snapshot.Enabled {
		return nil, nil
	}
	s, err := snapshot.NewMinio(ctx, snapshot.Config{
		Endpoint:  cfg.Snapshot.Endpoint,
		Region:    cfg.Snapshot.Region,
		Bucket:    cfg.Snapshot.Bucket,
		AccessKey: cfg.Snapshot.AccessKey,
		SecretKey: cfg.Snapshot.SecretKey,
		UseSSL:    cfg.Snapshot.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("html snapshots enabled", zap.String("bucket", cfg.Snapshot.Bucket))
	return s, nil
}

// initAnalyzer wires the pipeline. reports may be nil to skip persistence.
func initAnalyzer(ctx context.Context, reports store.ReportStore) (*pipeline.Analyzer, error) {
	provider, err := initProvider()
	if err != nil {
		return nil, err
	}
	snaps, err := initSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	f := fetcher.New(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		MaxTextChars: cfg.Fetch.MaxTextChars,
		HostRPS:      cfg.Fetch.HostRPS,
	})

	deps := pipeline.Deps{
		Fetcher:        f,
		Extractor:      pipeline.NewExtractor(provider, pipeline.ExtractOptionsFromConfig(cfg)),
		Generator:      pipeline.NewGenerator(provider, pipeline.GenerateOptionsFromConfig(cfg)),
		Tester:         pipeline.NewTester(provider, pipeline.TestOptionsFromConfig(cfg)),
		Reports:        reports,
		Snapshots:      snaps,
		Policies:       pipeline.PoliciesFromConfig(cfg),
		PersistTimeout: time.Duration(cfg.Analysis.PersistTimeoutSec) * time.Second,
	}
	return pipeline.NewAnalyzer(deps), nil
}
