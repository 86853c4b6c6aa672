// Command oceantree-play is a terminal front end for the tree-matching game.
//
// It reads one command per line from stdin; see `help`. Feedback and
// automatic reverts are printed as they happen.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/oceantree/internal/catalog"
	"github.com/robalobadob/oceantree/internal/config"
	"github.com/robalobadob/oceantree/internal/game"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	cat, warnings, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load catalog")
	}
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	m := game.New(cat, game.WithTiming(cfg.Timing()), game.WithLogger(log.Logger))
	p := newPlayer(m, os.Stdout)
	defer p.Close()
	if err := p.Run(os.Stdin); err != nil {
		log.Fatal().Err(err).Msg("read input")
	}
}
