// Package cache keeps the most recent reading of each kind in Redis so the
// read endpoint does not have to query the store on every request.
package cache

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
)

const keyPrefix = "energyhub:latest:"

type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "redis %s", addr)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func key(t domain.Table) string { return keyPrefix + string(t) }

// Offer stores rd unless the cached reading of the same kind is at least as
// new. The check and the write happen in one optimistic transaction.
func (r *Redis) Offer(ctx context.Context, rd domain.Reading) error {
	k := key(rd.Table())
	b, err := json.Marshal(rd)
	if err != nil {
		return errors.Wrap(err, "encode reading")
	}

	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && !newer(cur, rd.Key()) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, b, 0)
			return nil
		})
		return err
	}, k)
}

func (r *Redis) Electricity(ctx context.Context) (domain.Electricity, bool, error) {
	var e domain.Electricity
	ok, err := r.load(ctx, domain.TableElectricity, &e)
	return e, ok, err
}

func (r *Redis) Heat(ctx context.Context) (domain.Heat, bool, error) {
	var h domain.Heat
	ok, err := r.load(ctx, domain.TableHeat, &h)
	return h, ok, err
}

func (r *Redis) load(ctx context.Context, t domain.Table, dst interface{}) (bool, error) {
	b, err := r.rdb.Get(ctx, key(t)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, errors.Wrapf(err, "decode cached %s", t)
	}
	return true, nil
}

// newer reports whether ts is later than the timestamp of the cached JSON.
// Unreadable cache entries are always replaced.
func newer(cached []byte, ts int64) bool {
	var cur struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(cached, &cur); err != nil {
		return true
	}
	return ts > cur.Timestamp
}
