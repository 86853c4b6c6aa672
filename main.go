package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/oceantree/internal/catalog"
	"github.com/robalobadob/oceantree/internal/config"
	"github.com/robalobadob/oceantree/internal/game"
	"github.com/robalobadob/oceantree/internal/httpserver"
	"github.com/robalobadob/oceantree/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.SessionSecret == config.DevSecret {
		log.Warn().Msg("SESSION_SECRET not set; using development secret")
	}

	cat, warnings, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.CatalogFile).Msg("failed to load catalog")
	}
	for _, w := range warnings {
		log.Warn().Str("file", cfg.CatalogFile).Msg(w)
	}
	log.Info().Int("species", len(cat.Species())).Int("nodes", len(cat.Nodes())).Msg("catalog loaded")

	mem := store.NewMemoryStore()
	go sweep(context.Background(), mem, cfg.SessionIdle)

	timing := cfg.Timing()
	srv := httpserver.New(httpserver.Options{
		Store:   mem,
		Catalog: cat,
		NewMachine: func() *game.Machine {
			return game.New(cat, game.WithTiming(timing), game.WithLogger(log.Logger))
		},
		Secret:       cfg.SessionSecret,
		TokenTTL:     cfg.SessionTTL,
		ClientOrigin: cfg.ClientOrigin,
	})
	log.Info().Str("port", cfg.Port).Msg("starting oceantree server")
	if err := srv.Start(cfg.Addr()); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// sweep periodically drops sessions idle for longer than idle.
func sweep(ctx context.Context, st store.Store, idle time.Duration) {
	if idle <= 0 {
		return
	}
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := st.Sweep(ctx, idle); n > 0 {
				log.Info().Int("dropped", n).Int("live", st.Len()).Msg("swept idle sessions")
			}
		}
	}
}
