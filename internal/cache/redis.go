// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldInsertedAt = "inserted_at"
	fieldTTL        = "ttl_ms"
	fieldGrace      = "grace_ms"
	fieldPayload    = "payload"
)

// indexScript adds a provider to a term index and extends the index
// expiry to at least ARGV[2] milliseconds. It never shortens it, so the
// index outlives every entry it lists.
var indexScript = redis.NewScript(`
redis.call("SADD", KEYS[1], ARGV[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < tonumber(ARGV[2]) then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// RedisStore keeps one hash per entry. A set per term lists the providers
// cached for it so a term can be invalidated without scanning. Redis
// expires each hash at TTL+grace as a backstop for entries never read
// again, and each term index no earlier than its longest-lived entry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisStoreFromClient(redis.NewClient(opts), prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "termsource"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) entryKey(key Key) string {
	return s.prefix + ":entry:" + key.Provider + ":" + key.Term
}

func (s *RedisStore) termKey(term string) string {
	return s.prefix + ":term:" + term
}

func (s *RedisStore) Header(ctx context.Context, key Key) (Header, bool, error) {
	vals, err := s.client.HMGet(ctx, s.entryKey(key), fieldInsertedAt, fieldTTL, fieldGrace).Result()
	if err != nil {
		return Header{}, false, fmt.Errorf("reading cache header: %w", err)
	}
	if vals[0] == nil && vals[1] == nil && vals[2] == nil {
		return Header{}, false, nil
	}
	var nums [3]int64
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			return Header{}, false, fmt.Errorf("%w: missing header field", ErrCorrupt)
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return Header{}, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		nums[i] = n
	}
	return toHeader(nums[0], nums[1], nums[2]), true, nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (Entry, bool, error) {
	h, ok, err := s.Header(ctx, key)
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	payload, err := s.client.HGet(ctx, s.entryKey(key), fieldPayload).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, fmt.Errorf("%w: missing payload", ErrCorrupt)
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache payload: %w", err)
	}
	return Entry{Key: key, Header: h, Payload: payload}, true, nil
}

func (s *RedisStore) Put(ctx context.Context, e Entry) error {
	k := s.entryKey(e.Key)
	lifetime := e.TTL + e.Grace + time.Minute
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k,
			fieldInsertedAt, strconv.FormatInt(e.InsertedAt.UnixNano(), 10),
			fieldTTL, strconv.FormatInt(e.TTL.Milliseconds(), 10),
			fieldGrace, strconv.FormatInt(e.Grace.Milliseconds(), 10),
			fieldPayload, e.Payload,
		)
		p.PExpire(ctx, k, lifetime)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	err = indexScript.Run(ctx, s.client, []string{s.termKey(e.Term)}, e.Provider, lifetime.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("indexing cache entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.entryKey(key))
		p.SRem(ctx, s.termKey(key.Term), key.Provider)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// DeleteIfUnchanged watches the entry so a Put landing between the
// comparison and the delete aborts the transaction.
func (s *RedisStore) DeleteIfUnchanged(ctx context.Context, key Key, insertedAt time.Time) (bool, error) {
	k := s.entryKey(key)
	want := strconv.FormatInt(insertedAt.UnixNano(), 10)
	deleted := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, k, fieldInsertedAt).Result()
		if errors.Is(err, redis.Nil) || (err == nil && cur != want) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, k)
			p.SRem(ctx, s.termKey(key.Term), key.Provider)
			return nil
		})
		deleted = err == nil
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting cache entry: %w", err)
	}
	return deleted, nil
}

func (s *RedisStore) DeleteTerm(ctx context.Context, term string) (int, error) {
	providers, err := s.client.SMembers(ctx, s.termKey(term)).Result()
	if err != nil {
		return 0, fmt.Errorf("listing cache entries for %q: %w", term, err)
	}
	keys := []string{s.termKey(term)}
	for _, p := range providers {
		keys = append(keys, s.entryKey(Key{Term: term, Provider: p}))
	}
	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("deleting cache entries for %q: %w", term, err)
	}
	// The term index itself is not an entry.
	n := int(removed)
	if len(providers) > 0 && n > 0 {
		n--
	}
	return n, nil
}

func (s *RedisStore) DeleteAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("purging cache: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cache keys: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("purging cache: %w", err)
		}
	}
	return nil
}

// Close closes the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
