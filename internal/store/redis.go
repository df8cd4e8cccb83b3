package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/local/pinsweeper/internal/pins"
)

// Redis keeps pins as JSON documents at <pins>:<id>, indexed by a ZSET
// <pins>:by_last_updated scored in unix microseconds, so the cutoff compares
// at microsecond resolution. Log documents live in the hash <logs>, one field
// per document id.
type Redis struct {
	client *redis.Client
	pins   string
	logs   string
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, redisURL, pinsCollection, logCollection string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: c, pins: pinsCollection, logs: logCollection}, nil
}

func (s *Redis) Name() string { return "redis" }

func (s *Redis) Close() error { return s.client.Close() }

func (s *Redis) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Redis) pinKey(id string) string { return fmt.Sprintf("%s:%s", s.pins, id) }
func (s *Redis) indexKey() string        { return s.pins + ":by_last_updated" }

// StalePins returns every pin whose lastUpdated is strictly before cutoff.
func (s *Redis) StalePins(ctx context.Context, cutoff time.Time) ([]pins.Pin, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.indexKey(), err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.pinKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load pins: %w", err)
	}

	out := make([]pins.Pin, 0, len(ids))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// index entry without a document
			log.Warn().Str("pin_id", ids[i]).Msg("indexed pin has no document")
			continue
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			log.Warn().Err(err).Str("pin_id", ids[i]).Msg("undecodable pin document")
			continue
		}
		p := pins.Pin{ID: ids[i], Data: data}
		p.LastUpdated, _ = lastUpdated(data[pins.FieldLastUpdated])
		out = append(out, p)
	}
	return out, nil
}

func (s *Redis) DeletePin(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.pinKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", s.pinKey(id), err)
	}
	return nil
}

func (s *Redis) WriteLog(ctx context.Context, docID string, e pins.LogEntry) error {
	doc := e.Document()
	delete(doc, "id")
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode log %s: %w", docID, err)
	}
	if err := s.client.HSet(ctx, s.logs, docID, b).Err(); err != nil {
		return fmt.Errorf("write %s/%s: %w", s.logs, docID, err)
	}
	return nil
}

// ListLogs returns all log documents in document id order.
func (s *Redis) ListLogs(ctx context.Context) ([]pins.LogEntry, error) {
	res, err := s.client.HGetAll(ctx, s.logs).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.logs, err)
	}
	ids := make([]string, 0, len(res))
	for id := range res {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]pins.LogEntry, 0, len(ids))
	for _, id := range ids {
		var doc map[string]any
		if err := json.Unmarshal([]byte(res[id]), &doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", s.logs, id, err)
		}
		out = append(out, pins.EntryFromDocument(id, doc))
	}
	return out, nil
}
