package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/energyhub/internal/database"
	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
	"github.com/ANIKETSHETTY47/energyhub/internal/parser"
)

const (
	dsmrPayload     = `{"timestamp":"2024-02-01T10:00:00+01:00","ActiveTariff":"Tariff1","ElectricityUsedT1":4021.123,"ElectricityUsedT2":3950.5,"CurrentElectricityUsage":0.412,"CurrentElectricityDraw":0.412,"InstantaneousActivePowerPositive":0.4,"InstantaneousActivePowerNegative":0}`
	kamstrupPayload = `{"timestamp":"2024-02-01T10:00:00+01:00","energy":52.341,"volume":1012.5,"temp1":61.0,"temp2":38.5,"hourcounter":70123.9}`
)

type memCache struct {
	offered []domain.Reading
	e       *domain.Electricity
	h       *domain.Heat
	err     error
}

func (c *memCache) Offer(_ context.Context, rd domain.Reading) error {
	if c.err != nil {
		return c.err
	}
	c.offered = append(c.offered, rd)
	switch v := rd.(type) {
	case domain.Electricity:
		c.e = &v
	case domain.Heat:
		c.h = &v
	}
	return nil
}

func (c *memCache) Electricity(context.Context) (domain.Electricity, bool, error) {
	if c.e == nil {
		return domain.Electricity{}, false, c.err
	}
	return *c.e, true, c.err
}

func (c *memCache) Heat(context.Context) (domain.Heat, bool, error) {
	if c.h == nil {
		return domain.Heat{}, false, c.err
	}
	return *c.h, true, c.err
}

func newServices(t *testing.T, cache LatestCache) *Services {
	t.Helper()
	db, err := database.Connect(context.Background(), database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, cache, time.UTC, zerolog.Nop())
}

func TestFromMQTTRoutesByTopic(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{}
	svcs := newServices(t, cache)

	out, err := svcs.Readings.FromMQTT(ctx, TopicDSMR, []byte(dsmrPayload))
	require.NoError(t, err)
	assert.Equal(t, Inserted, out)

	out, err = svcs.Readings.FromMQTT(ctx, TopicKamstrup, []byte(kamstrupPayload))
	require.NoError(t, err)
	assert.Equal(t, Inserted, out)

	e, err := svcs.Repos.LatestElectricity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4021123), e.UsedT1)
	require.NotNil(t, e.CurrentUsage)
	assert.Equal(t, int64(412), *e.CurrentUsage)

	h, err := svcs.Repos.LatestHeat(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(52341), h.Energy)
	assert.Equal(t, int64(1012500), h.Volume)
	assert.Equal(t, int64(70123), h.Hourcounter)

	assert.Len(t, cache.offered, 2)
}

func TestFromMQTTDuplicateIsSilent(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{}
	svcs := newServices(t, cache)

	_, err := svcs.Readings.FromMQTT(ctx, TopicKamstrup, []byte(kamstrupPayload))
	require.NoError(t, err)
	out, err := svcs.Readings.FromMQTT(ctx, TopicKamstrup, []byte(kamstrupPayload))
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)

	n, err := svcs.Repos.Count(ctx, domain.TableHeat)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, cache.offered, 1)
}

func TestFromMQTTUnknownTopic(t *testing.T) {
	svcs := newServices(t, nil)
	out, err := svcs.Readings.FromMQTT(context.Background(), "zigbee/livingroom", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, Dropped, out)
}

func TestFromMQTTMalformed(t *testing.T) {
	svcs := newServices(t, nil)
	out, err := svcs.Readings.FromMQTT(context.Background(), TopicDSMR, []byte(`{"timestamp":`))
	require.Error(t, err)
	assert.Equal(t, Dropped, out)
	assert.Equal(t, parser.KindSerialization, parser.KindOf(err))
}

func TestFromMQTTCacheFailureIsNotFatal(t *testing.T) {
	svcs := newServices(t, &memCache{err: errors.New("connection refused")})
	out, err := svcs.Readings.FromMQTT(context.Background(), TopicKamstrup, []byte(kamstrupPayload))
	require.NoError(t, err)
	assert.Equal(t, Inserted, out)
}

func TestSnapshotFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	svcs := newServices(t, &memCache{})

	snap, err := svcs.Latest.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Electricity)
	assert.Nil(t, snap.Heat)

	_, err = svcs.Repos.Insert(ctx, domain.Heat{Timestamp: 5, Energy: 1, Volume: 2, Hourcounter: 3})
	require.NoError(t, err)

	snap, err = svcs.Latest.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Electricity)
	require.NotNil(t, snap.Heat)
	assert.Equal(t, int64(5), snap.Heat.Timestamp)
}

func TestSnapshotPrefersCache(t *testing.T) {
	cache := &memCache{
		e: &domain.Electricity{Timestamp: 42, ActiveTariff: 1},
		h: &domain.Heat{Timestamp: 43},
	}
	svcs := newServices(t, cache)

	snap, err := svcs.Latest.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Electricity)
	assert.Equal(t, int64(42), snap.Electricity.Timestamp)
	assert.Equal(t, int64(43), snap.Heat.Timestamp)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "inserted", Inserted.String())
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "dropped", Dropped.String())
}
