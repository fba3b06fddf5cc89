// Package events fans match notifications out over a Redis stream so other
// processes can tell reporters that a candidate turned up.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/findit/internal/match"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stream is the Redis stream carrying match events.
const Stream = "findit:matches"

// Event types.
const (
	TypeMatchesFound  = "matches.found"
	TypeStatusChanged = "match.status"
)

// Candidate is the slim view of a match carried on the wire.
type Candidate struct {
	CandidateID string  `json:"candidate_id"`
	PairKey     string  `json:"pair_key"`
	Score       float64 `json:"score"`
}

// MatchEvent announces new matches for an item or a status change.
type MatchEvent struct {
	Type       string      `json:"type"`
	ItemID     string      `json:"item_id,omitempty"`
	PairKey    string      `json:"pair_key,omitempty"`
	Kind       string      `json:"kind,omitempty"`
	Preset     string      `json:"preset,omitempty"`
	Status     string      `json:"status,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewStatusChanged announces that the pairing with pairKey moved to status.
func NewStatusChanged(pairKey, status string) *MatchEvent {
	return &MatchEvent{Type: TypeStatusChanged, PairKey: pairKey, Status: status, Timestamp: time.Now().UTC()}
}

// NewMatchesFound summarizes results computed for itemID.
func NewMatchesFound(itemID, kind string, results []match.Result) *MatchEvent {
	ev := &MatchEvent{Type: TypeMatchesFound, ItemID: itemID, Kind: kind, Timestamp: time.Now().UTC()}
	for _, r := range results {
		ev.Preset = r.Preset
		ev.Candidates = append(ev.Candidates, Candidate{
			CandidateID: r.CandidateID,
			PairKey:     r.PairKey,
			Score:       r.Score,
		})
	}
	return ev
}

// Bus publishes and consumes MatchEvents via Redis Streams.
type Bus struct {
	rdb    redis.UniversalClient
	maxLen int64
	logger *zap.Logger
}

// NewBus wraps an existing client. maxLen caps the stream length
// approximately; zero leaves it unbounded.
func NewBus(rdb redis.UniversalClient, maxLen int64, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{rdb: rdb, maxLen: maxLen, logger: logger}
}

// Dial parses redisURL and checks the server answers.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Publish appends ev to the stream.
func (b *Bus) Publish(ctx context.Context, ev *MatchEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]interface{}{"data": string(data)},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}
	if _, err := b.rdb.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("publish to %s: %w", Stream, err)
	}
	b.logger.Debug("published match event",
		zap.String("type", ev.Type),
		zap.String("item", ev.ItemID),
		zap.Int("candidates", len(ev.Candidates)))
	return nil
}

// Subscribe streams events published after the call. The channel closes when
// ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context) <-chan *MatchEvent {
	ch := make(chan *MatchEvent, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			if ctx.Err() != nil {
				return
			}
			streams, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{Stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					b.logger.Warn("read match stream", zap.Error(err))
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
				}
				continue
			}

			for _, s := range streams {
				for _, msg := range s.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev MatchEvent
					if err := json.Unmarshal([]byte(data), &ev); err != nil {
						b.logger.Warn("dropping malformed match event", zap.String("id", msg.ID), zap.Error(err))
						continue
					}
					select {
					case ch <- &ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}
