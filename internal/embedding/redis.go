package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "findit:emb:"

// RedisStore is a SharedStore keeping vectors as little-endian float32 blobs
// under findit:emb:<namespace>:<sha256(text)>. Processes share vectors only
// when they use the same namespace; see Namespace.
type RedisStore struct {
	rdb       redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// NewRedisStore wraps rdb. A zero ttl keeps entries until purged.
func NewRedisStore(rdb redis.UniversalClient, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, namespace: namespace, ttl: ttl}
}

func redisKey(namespace, text string) string {
	sum := sha256.Sum256([]byte(text))
	return redisKeyPrefix + namespace + ":" + hex.EncodeToString(sum[:])
}

// Get fetches the vector stored for text.
func (s *RedisStore) Get(ctx context.Context, text string) ([]float32, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKey(s.namespace, text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set stores vec for text.
func (s *RedisStore) Set(ctx context.Context, text string, vec []float32) error {
	if err := s.rdb.Set(ctx, redisKey(s.namespace, text), encodeVector(vec), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Purge deletes every key in the store's namespace.
func (s *RedisStore) Purge(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+s.namespace+":*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("embedding: corrupt cached vector of %d bytes", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}
