package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/stepflow/pkg/api"
)

// RedisEventStore is an EventStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>events:<runner id>  => LIST of gob-encoded redisEventPayload
//	<prefix>idx:runners         => SET of runner IDs with events
type RedisEventStore struct {
	client redis.UniversalClient
	prefix string
}

// Ensure RedisEventStore implements EventStore.
var _ EventStore = (*RedisEventStore)(nil)

type redisEventPayload struct {
	RunnerID string
	At       int64
	Type     string
	Flow     string
	Step     string
	Detail   string
}

// NewRedisEventStore creates a RedisEventStore.
// prefix is optional but recommended (e.g. "stepflow:").
func NewRedisEventStore(client redis.UniversalClient, prefix string) *RedisEventStore {
	if prefix == "" {
		prefix = "stepflow:"
	}
	return &RedisEventStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisEventStore) keyEvents(runnerID string) string {
	return s.prefix + "events:" + runnerID
}

func (s *RedisEventStore) keyRunners() string {
	return s.prefix + "idx:runners"
}

func (s *RedisEventStore) AppendEvent(ctx context.Context, ev api.RunnerEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	var buf bytes.Buffer
	payload := redisEventPayload{
		RunnerID: ev.RunnerID,
		At:       at.UnixNano(),
		Type:     string(ev.Type),
		Flow:     ev.Flow,
		Step:     ev.Step,
		Detail:   ev.Detail,
	}
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.keyEvents(ev.RunnerID), buf.Bytes())
	pipe.SAdd(ctx, s.keyRunners(), ev.RunnerID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisEventStore) ListEvents(ctx context.Context, runnerID string) ([]api.RunnerEvent, error) {
	raw, err := s.client.LRange(ctx, s.keyEvents(runnerID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]api.RunnerEvent, 0, len(raw))
	for _, item := range raw {
		var payload redisEventPayload
		if err := gob.NewDecoder(bytes.NewReader([]byte(item))).Decode(&payload); err != nil {
			return nil, err
		}
		out = append(out, api.RunnerEvent{
			RunnerID: payload.RunnerID,
			At:       time.Unix(0, payload.At),
			Type:     api.EventType(payload.Type),
			Flow:     payload.Flow,
			Step:     payload.Step,
			Detail:   payload.Detail,
		})
	}
	return out, nil
}

func (s *RedisEventStore) ListRunners(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.keyRunners()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
