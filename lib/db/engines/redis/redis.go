package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dTxn/lib/db"
	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/redis/go-redis/v9"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// DBOptions configures the connection of the redis engine
type DBOptions struct {
	Addr     string // host:port of the redis server
	Password string // empty means no auth
	DB       int    // redis logical database
	Prefix   string // prepended to every key, separates databases sharing one server
	Timeout  time.Duration
}

// DefaultOptions returns options for a local redis server
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Addr:    "localhost:6379",
		Prefix:  "dtxn:",
		Timeout: 5 * time.Second,
	}
}

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

type redisImpl struct {
	client *redis.Client
	prefix string
}

// NewRedisDB creates a db.DocDB backed by a redis server.
// Every document is one string key holding its JSON encoding; the set of ids
// is kept in an additional key so that GetInfo can count documents.
func NewRedisDB(opts *DBOptions) db.DocDB {
	if opts == nil {
		opts = DefaultOptions()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})

	return &redisImpl{client: client, prefix: opts.Prefix}
}

// Ping checks that the server is reachable
func Ping(ctx context.Context, database db.DocDB) error {
	r, ok := database.(*redisImpl)
	if !ok {
		return fmt.Errorf("redis: not a redis database")
	}
	return r.client.Ping(ctx).Err()
}

func (r *redisImpl) docKey(id string) string {
	return r.prefix + "doc:" + id
}

func (r *redisImpl) idsKey() string {
	return r.prefix + "ids"
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Put uses WATCH on the document key; a concurrent write between the read of
// the current revision and EXEC aborts the transaction and surfaces as db.ErrConflict.
func (r *redisImpl) Put(ctx context.Context, d doc.Document) (string, error) {
	id := d.ID()
	if id == "" {
		return "", db.ErrMissingID
	}
	key := r.docKey(id)

	var newRev string
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, exists, err := r.currentRev(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := db.CheckWrite(exists, current, d.Rev()); err != nil {
			return err
		}

		newRev = db.NextRev(current)
		stored := d.Clone()
		stored.SetRev(newRev)
		body, err := stored.Encode()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, body, 0)
			pipe.SAdd(ctx, r.idsKey(), id)
			return nil
		})
		return err
	}, key)

	if err != nil {
		return "", mapError(err)
	}
	return newRev, nil
}

// Delete removes the document if rev matches
func (r *redisImpl) Delete(ctx context.Context, id, rev string) error {
	key := r.docKey(id)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, exists, err := r.currentRev(ctx, tx, key)
		if err != nil {
			return err
		}
		if !exists {
			return db.ErrConflict
		}
		if err := db.CheckWrite(true, current, rev); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, r.idsKey(), id)
			return nil
		})
		return err
	}, key)

	return mapError(err)
}

func (r *redisImpl) currentRev(ctx context.Context, tx *redis.Tx, key string) (string, bool, error) {
	body, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	d, err := doc.Decode(body)
	if err != nil {
		return "", false, err
	}
	return d.Rev(), true, nil
}

func mapError(err error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return db.ErrConflict
	}
	return err
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (r *redisImpl) Get(ctx context.Context, id string) (doc.Document, bool, error) {
	body, err := r.client.Get(ctx, r.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	d, err := doc.Decode(body)
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save is not supported, redis persists on its own
func (r *redisImpl) Save(io.Writer) error {
	return db.ErrUnsupported
}

// Load is not supported, redis persists on its own
func (r *redisImpl) Load(io.Reader) error {
	return db.ErrUnsupported
}

// --------------------------------------------------------------------------
// Info and Features
// --------------------------------------------------------------------------

func (r *redisImpl) GetInfo() db.DatabaseInfo {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := r.client.SCard(ctx, r.idsKey()).Result()
	if err != nil {
		count = -1
	}

	opts := r.client.Options()
	return db.DatabaseInfo{
		DocCount: int(count),
		DbType:   db.ImplRedis,
		SupportedFeatures: []db.Feature{
			db.FeatureGet, db.FeaturePut, db.FeatureDelete,
		},
		Metadata: map[string]any{
			"addr":   opts.Addr,
			"db":     opts.DB,
			"prefix": r.prefix,
		},
	}
}

func (r *redisImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureGet |
		db.FeaturePut |
		db.FeatureDelete
	return supportedFeatures&feature == feature
}

func (r *redisImpl) Close() error {
	return r.client.Close()
}
