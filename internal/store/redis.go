package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

const (
	sessionKeyPrefix = "pixelforge:session:"
	userIndexPrefix  = "pixelforge:user-sessions:"
)

// Redis is a Store backed by a Redis instance. Records are stored as JSON
// at session:<id>; the per-user index is a SET at user-sessions:<userID>.
// Update serialization is per-id within the process; one process owns the
// session keyspace.
type Redis struct {
	client  *redis.Client
	updates *keyedLocks
}

// NewRedis constructs a Redis-backed store and verifies connectivity.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{client: client, updates: newKeyedLocks()}, nil
}

func sessionKey(id string) string    { return sessionKeyPrefix + id }
func userIndexKey(uid string) string { return userIndexPrefix + uid }

func (r *Redis) Create(ctx context.Context, sess *types.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKey(sess.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", sess.ID, apperr.ErrAlreadyExists)
	}

	if err := r.client.SAdd(ctx, userIndexKey(sess.UserID), sess.ID).Err(); err != nil {
		return fmt.Errorf("redis index add: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id string) (*types.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (r *Redis) Update(ctx context.Context, id string, fields UpdateFields) (*types.Session, error) {
	lock := r.updates.get(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyFields(sess, fields)
	sess.Time.Updated = time.Now().UnixMilli()

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(id), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("redis set: %w", err)
	}
	return sess, nil
}

func (r *Redis) Delete(ctx context.Context, id string) (bool, error) {
	// Same lock order as Update, so a delete can never land between an
	// update's read and its write and resurrect the record.
	lock := r.updates.get(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := r.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, userIndexKey(sess.UserID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis delete: %w", err)
	}
	r.updates.drop(id)
	return true, nil
}

func (r *Redis) ListByUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	return ids, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
