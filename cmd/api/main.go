package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/energyhub/internal/cache"
	"github.com/ANIKETSHETTY47/energyhub/internal/config"
	"github.com/ANIKETSHETTY47/energyhub/internal/database"
	httpHandlers "github.com/ANIKETSHETTY47/energyhub/internal/http"
	"github.com/ANIKETSHETTY47/energyhub/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(config.LogLevel())

	ctx := context.Background()
	db, err := database.Connect(ctx, config.DBDriver(), config.DBDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	var latest service.LatestCache
	if addr := config.RedisAddr(); addr != "" {
		rc, err := cache.NewRedis(ctx, addr)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, serving from the database")
		} else {
			defer rc.Close()
			latest = rc
		}
	}

	svcs := service.New(db, latest, config.Location(), log.Logger)
	app := fiber.New()
	httpHandlers.Register(app, svcs, config.Location())

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Msg("api listening")
	log.Fatal().Err(app.Listen(addr)).Msg("server exit")
}
