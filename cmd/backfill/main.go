package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/energyhub/internal/backfill"
	"github.com/ANIKETSHETTY47/energyhub/internal/cloud"
	"github.com/ANIKETSHETTY47/energyhub/internal/config"
	"github.com/ANIKETSHETTY47/energyhub/internal/database"
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

	var opener backfill.Opener = backfill.Dir(".")
	if bucket := config.BackfillS3Bucket(); bucket != "" {
		archive, err := cloud.NewS3Archive(ctx, config.AWSRegion(), bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("s3 setup failed")
		}
		opener = archive
		log.Info().Str("bucket", archive.Bucket()).Msg("reading logs from s3")
	}

	sources := backfill.Sources(config.BackfillDSMR(), config.BackfillKamstrup(), config.Location())
	report, err := backfill.New(db, opener, sources, log.Logger).Run(ctx)
	if err != nil {
		// log.Fatal would skip the deferred Close.
		log.Error().Err(err).Msg("backfill aborted")
		db.Close()
		os.Exit(1)
	}
	log.Info().Int("files", len(report.Files)).Int("failed_lines", report.Failed()).Msg("backfill done")
}
