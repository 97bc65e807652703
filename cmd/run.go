package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/numbersense/internal/cache"
	"github.com/abhisek/numbersense/internal/config"
	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/intervention"
	"github.com/abhisek/numbersense/internal/llm"
	"github.com/abhisek/numbersense/internal/logging"
	"github.com/abhisek/numbersense/internal/narrative"
	"github.com/abhisek/numbersense/internal/store"
)

// deps is everything a command needs, opened from flags and environment.
type deps struct {
	rt    config.Runtime
	log   *logging.Logger
	store *store.Store
	cache cache.ProfileCache
	svc   *engine.Service
}

func (d *deps) Close() {
	if d.cache != nil {
		d.cache.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
	d.log.Sync()
}

// setupOpts selects the optional parts of deps.
type setupOpts struct {
	// narrate builds an LLM provider for risk narratives when one is
	// configured.
	narrate bool
}

// setup opens the store, loads configuration and builds the engine.
// The caller must Close the result.
func setup(cmd *cobra.Command, opts setupOpts) (*deps, error) {
	ctx := cmd.Context()

	rt := config.RuntimeFromEnv()
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		rt.LogMode = "dev"
	}
	log, err := logging.New(rt.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	d := &deps{rt: rt, log: log}

	cfg, err := config.Load(flagOrEnv(cmd, "config", "NUMBERSENSE_CONFIG"))
	if err != nil {
		d.Close()
		return nil, err
	}
	if cfg, err = cfg.ApplyEnv(); err != nil {
		d.Close()
		return nil, err
	}

	catalog, err := intervention.LoadCatalog(flagOrEnv(cmd, "catalog", "NUMBERSENSE_CATALOG"))
	if err != nil {
		d.Close()
		return nil, err
	}

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	if d.store, err = store.OpenContext(ctx, dbPath); err != nil {
		d.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	if rt.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, rt.RedisAddr, rt.CacheTTL)
		if err != nil {
			log.Warn("redis unavailable, using in-process cache", "addr", rt.RedisAddr, "error", err)
			d.cache = cache.NewMemory(rt.CacheTTL)
		} else {
			d.cache = rc
		}
	} else {
		d.cache = cache.NewMemory(rt.CacheTTL)
	}

	svcOpts := engine.Options{
		Cache:         d.cache,
		Catalog:       &catalog,
		Logger:        log,
		RecordReports: rt.RecordReports,
	}

	if opts.narrate {
		provider, err := llm.NewProvider(ctx, llm.ConfigFromEnv(), d.store, log)
		switch {
		case errors.Is(err, llm.ErrDisabled):
			log.Debug("LLM provider not configured, narratives disabled")
		case err != nil:
			log.Warn("LLM provider unavailable, narratives disabled", "error", err)
		default:
			svcOpts.Narrator = narrative.New(provider, narrative.DefaultConfig())
		}
	}

	if d.svc, err = engine.NewService(cfg, d.store, svcOpts); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}
