package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
	"github.com/ANIKETSHETTY47/energyhub/internal/repository"
)

// Snapshot holds the newest reading of each kind; nil when none is stored.
type Snapshot struct {
	Electricity *domain.Electricity
	Heat        *domain.Heat
}

type LatestService struct {
	repos *repository.Repos
	cache LatestCache
	log   zerolog.Logger
}

// Snapshot answers from the cache when it has both readings and falls back
// to the store otherwise.
func (s *LatestService) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	if s.cache != nil {
		e, eok, eerr := s.cache.Electricity(ctx)
		h, hok, herr := s.cache.Heat(ctx)
		if eerr != nil || herr != nil {
			s.log.Warn().AnErr("electricity", eerr).AnErr("heat", herr).Msg("latest cache read failed")
		}
		if eok && hok && eerr == nil && herr == nil {
			return Snapshot{Electricity: &e, Heat: &h}, nil
		}
	}

	e, err := s.repos.LatestElectricity(ctx)
	switch {
	case err == nil:
		snap.Electricity = &e
	case !errors.Is(err, repository.ErrNotFound):
		return snap, err
	}

	h, err := s.repos.LatestHeat(ctx)
	switch {
	case err == nil:
		snap.Heat = &h
	case !errors.Is(err, repository.ErrNotFound):
		return snap, err
	}
	return snap, nil
}
