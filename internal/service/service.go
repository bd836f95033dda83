package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
	"github.com/ANIKETSHETTY47/energyhub/internal/parser"
	"github.com/ANIKETSHETTY47/energyhub/internal/repository"
)

const (
	TopicDSMR     = "dsmr/measurements"
	TopicKamstrup = "kamstrup/values"
)

// Topics lists every topic the live feed carries readings on.
var Topics = []string{TopicDSMR, TopicKamstrup}

// LatestCache keeps the newest reading of each kind for the read endpoint.
type LatestCache interface {
	Offer(ctx context.Context, rd domain.Reading) error
	Electricity(ctx context.Context) (domain.Electricity, bool, error)
	Heat(ctx context.Context) (domain.Heat, bool, error)
}

type Services struct {
	Repos    *repository.Repos
	Readings *ReadingService
	Latest   *LatestService
}

// New wires the services around db. cache may be nil.
func New(db *sqlx.DB, cache LatestCache, loc *time.Location, log zerolog.Logger) *Services {
	repos := repository.New(db)
	return &Services{
		Repos:    repos,
		Readings: &ReadingService{repos: repos, cache: cache, loc: loc, log: log},
		Latest:   &LatestService{repos: repos, cache: cache, log: log},
	}
}

// Outcome is what happened to one live message.
type Outcome int

const (
	Inserted Outcome = iota
	Duplicate
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	default:
		return "dropped"
	}
}

type ReadingService struct {
	repos *repository.Repos
	cache LatestCache
	loc   *time.Location
	log   zerolog.Logger
}

// FromMQTT parses payload according to topic and stores the reading with an
// auto-committed insert. Messages on other topics are dropped.
func (s *ReadingService) FromMQTT(ctx context.Context, topic string, payload []byte) (Outcome, error) {
	var (
		rd  domain.Reading
		err error
	)
	switch topic {
	case TopicDSMR:
		rd, err = parser.ParseElectricity(payload, s.loc)
	case TopicKamstrup:
		rd, err = parser.ParseHeat(payload, s.loc)
	default:
		return Dropped, nil
	}
	if err != nil {
		return Dropped, err
	}

	inserted, err := s.repos.Insert(ctx, rd)
	if err != nil {
		return Dropped, err
	}
	if !inserted {
		return Duplicate, nil
	}
	if s.cache != nil {
		if err := s.cache.Offer(ctx, rd); err != nil {
			s.log.Warn().Err(err).Str("table", string(rd.Table())).Msg("latest cache update failed")
		}
	}
	return Inserted, nil
}
