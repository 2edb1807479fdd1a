// Package redis keeps idempotency records for the HTTP API in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/pkg/httpmiddleware"
)

var _ httpmiddleware.IdempotencyStore = (*IdempotencyStore)(nil)

const (
	keyPrefix     = "storefront:idempotency:"
	pendingMarker = "pending"
)

// Config configures the Redis client.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, errors.Wrapf(err, "ping redis %s", cfg.Addr)
	}
	return c, nil
}

// IdempotencyStore implements httpmiddleware.IdempotencyStore. A claimed key
// holds a pending marker until the response is stored or the key is
// released; both states expire after ttl.
type IdempotencyStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewIdempotencyStore returns a store over rdb. A non-positive ttl defaults to
// 24 hours.
func NewIdempotencyStore(rdb redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) Claim(ctx context.Context, key string) (*httpmiddleware.CachedResponse, error) {
	k := keyPrefix + key
	ok, err := s.rdb.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, "claim")
	}
	if ok {
		return nil, nil
	}

	raw, err := s.rdb.Get(ctx, k).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// Released between SETNX and GET.
		return nil, httpmiddleware.ErrIdempotencyInFlight
	case err != nil:
		return nil, errors.Wrap(err, "get")
	case string(raw) == pendingMarker:
		return nil, httpmiddleware.ErrIdempotencyInFlight
	}

	resp, err := decodeResponse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return &resp, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp httpmiddleware.CachedResponse) error {
	if err := s.rdb.Set(ctx, keyPrefix+key, encodeResponse(resp), s.ttl).Err(); err != nil {
		return errors.Wrap(err, "complete")
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "release")
	}
	return nil
}

func encodeResponse(resp httpmiddleware.CachedResponse) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Int(resp.Status)
	e.FieldStart("contentType")
	e.Str(resp.ContentType)
	e.FieldStart("body")
	e.Base64(resp.Body)
	e.ObjEnd()
	return e.Bytes()
}

func decodeResponse(raw []byte) (httpmiddleware.CachedResponse, error) {
	var resp httpmiddleware.CachedResponse
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			resp.Status, err = d.Int()
		case "contentType":
			resp.ContentType, err = d.Str()
		case "body":
			resp.Body, err = d.Base64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return httpmiddleware.CachedResponse{}, err
	}
	if resp.Status == 0 {
		return httpmiddleware.CachedResponse{}, errors.New("missing status")
	}
	return resp, nil
}
