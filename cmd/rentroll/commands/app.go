package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rentroll/rentroll/pkg/config"
	"github.com/rentroll/rentroll/pkg/engine"
	"github.com/rentroll/rentroll/pkg/policy"
	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/schema"
	"github.com/rentroll/rentroll/pkg/stores"
	"github.com/rentroll/rentroll/pkg/telemetry"
)

// app holds everything a command needs, built from the loaded configuration.
type app struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	backend  stores.Backend
	sqlStore *stores.SQLStore
	policies *policy.Engine
	engine   *engine.Orchestrator
	schemas  *schema.Registry
	loader   *policy.Loader
}

// loadConfig loads the configuration and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if metricsAddr != "" {
		cfg.Telemetry.Metrics.Enabled = true
		cfg.Telemetry.Metrics.ListenAddress = metricsAddr
	}
	return cfg, nil
}

// openBackend opens and, when configured, migrates the storage backend. The
// returned SQL store is nil for the memory driver.
func openBackend(ctx context.Context, cfg *config.Config) (stores.Backend, *stores.SQLStore, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory storage, data is discarded when the command exits")
		return stores.NewMemoryStore(), nil, nil
	}

	sqlCfg, err := cfg.Storage.SQL()
	if err != nil {
		return nil, nil, err
	}
	store, err := stores.NewSQLStore(sqlCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if cfg.Storage.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return store, store, nil
}

// newPolicyEngine builds the admission policy engine from the policy section.
func newPolicyEngine(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (*policy.Engine, error) {
	eng, err := policy.NewEngine(tel.Logger.NewComponentLogger("policy").Zerolog())
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if len(cfg.Policy.Dirs) > 0 {
		if err := eng.LoadPolicies(ctx, cfg.Policy.Dirs); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Policy.Disabled {
		if err := eng.DisablePolicy(name); err != nil {
			tel.Logger.WithField("policy", name).Warn("Cannot disable unknown policy")
		}
	}
	return eng, nil
}

// openApp loads configuration, telemetry, storage and the orchestrator.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := tel.Metrics.StartMetricsServer(ctx, tel.Logger); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	backend, sqlStore, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policies, err := newPolicyEngine(ctx, cfg, tel)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	orch, err := engine.New(ctx, backend, engine.Options{Telemetry: tel, Policies: policies})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		tel:      tel,
		backend:  backend,
		sqlStore: sqlStore,
		policies: policies,
		engine:   orch,
		schemas:  schema.NewRegistry(),
	}
	if cfg.Policy.Watch && len(cfg.Policy.Dirs) > 0 {
		if err := a.watchPolicies(ctx); err != nil {
			_ = backend.Close()
			return nil, err
		}
	}
	return a, nil
}

// watchPolicies reloads the policy set whenever a file under the configured
// policy directories changes. A policy set that fails to compile is logged
// and the previous set stays active.
func (a *app) watchPolicies(ctx context.Context) error {
	dirs := a.cfg.Policy.Dirs
	if len(dirs) == 0 {
		return fmt.Errorf("no policy directories configured (policy.dirs)")
	}

	loader := policy.NewLoader(a.tel.Logger.NewComponentLogger("policy-loader").Zerolog())
	err := loader.Watch(ctx, dirs, func(policies []policy.Policy) error {
		if err := a.policies.ReplacePolicies(ctx, policies); err != nil {
			log.Error().Err(err).Msg("Policy reload rejected")
			return err
		}
		log.Info().Int("policies", len(policies)).Msg("Policies reloaded")
		return nil
	})
	if err != nil {
		return err
	}
	a.loader = loader
	return nil
}

// Close releases the backend and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	if a.loader != nil {
		if err := a.loader.StopWatching(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop policy watcher")
		}
	}
	if err := a.backend.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}

// withApp opens the app, runs fn and closes the app.
func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(a)
}

func currentActor() property.Actor {
	return property.Actor{ID: actorID, Role: property.ParseRole(roleName)}
}

// writer returns the actor after checking it may mutate aggregates.
func writer() (property.Actor, error) {
	actor := currentActor()
	if err := actor.Authorize(property.RoleAdmin, property.RoleAnalyst); err != nil {
		return property.Actor{}, err
	}
	return actor, nil
}

// parseKey builds an aggregate key from positional arguments.
func parseKey(args []string) (property.Key, error) {
	key := property.Key{PropertyID: args[0], Version: args[1]}
	if _, err := property.ParseVersion(key.Version); err != nil {
		return property.Key{}, err
	}
	return key, nil
}

// checkRevision rejects a missing or negative --revision.
func checkRevision(rev int64) error {
	if rev < 0 {
		return fmt.Errorf("--revision is required and must be non-negative")
	}
	return nil
}
