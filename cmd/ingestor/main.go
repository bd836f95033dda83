package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/energyhub/internal/cache"
	"github.com/ANIKETSHETTY47/energyhub/internal/config"
	"github.com/ANIKETSHETTY47/energyhub/internal/database"
	"github.com/ANIKETSHETTY47/energyhub/internal/live"
	"github.com/ANIKETSHETTY47/energyhub/internal/mqttfeed"
	"github.com/ANIKETSHETTY47/energyhub/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, config.DBDriver(), config.DBDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	var latest service.LatestCache
	if addr := config.RedisAddr(); addr != "" {
		rc, err := cache.NewRedis(ctx, addr)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect failed")
		}
		defer rc.Close()
		latest = rc
	}

	svcs := service.New(db, latest, config.Location(), log.Logger)

	feed := mqttfeed.New(mqttfeed.Options{
		Broker:    config.MQTTBroker(),
		ClientID:  config.MQTTClientID(),
		KeepAlive: config.MQTTKeepAlive(),
	}, log.Logger)
	defer feed.Close()

	// Subscriptions are issued by the driver when the ConnAck event arrives.
	go func() {
		if err := feed.Connect(ctx); err != nil {
			log.Error().Err(err).Msg("mqtt connect")
		}
	}()

	driver := live.New(svcs.Readings, log.Logger)
	log.Info().Str("broker", config.MQTTBroker()).Msg("ingestor running; Ctrl+C to stop")
	if err := driver.Run(ctx, feed); err != nil {
		log.Error().Err(err).Msg("ingestor exit")
	}

	st := driver.Stats()
	log.Info().
		Int("received", st.Received).
		Int("inserted", st.Inserted).
		Int("duplicates", st.Duplicates).
		Int("dropped", st.Dropped).
		Int("failed", st.Failed).
		Msg("ingestor stopped")
}
