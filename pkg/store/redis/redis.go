// Package redis provides a Redis-backed EntityStore for deployments that
// keep the committed model in a shared cache instead of a local file. The
// atomic commit primitive maps onto a MULTI/EXEC pipeline.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alignworks/corridord/pkg/store"
)

const (
	entityKeyFmt = "corridord:entity:%s:%s"
	kindSetFmt   = "corridord:entities:%s"
	edgesKey     = "corridord:edges"
)

// EntityStore implements store.EntityStore on a Redis client.
type EntityStore struct {
	client *redis.Client
}

// New wraps a Redis client.
func New(client *redis.Client) *EntityStore {
	return &EntityStore{client: client}
}

func entityKey(kind store.EntityKind, id string) string {
	return fmt.Sprintf(entityKeyFmt, kind, id)
}

func kindSet(kind store.EntityKind) string {
	return fmt.Sprintf(kindSetFmt, kind)
}

func edgeMember(e store.EdgeRecord) string {
	return fmt.Sprintf("%s|%s|%s", e.FromID, e.ToID, e.Type)
}

// Get returns one entity record, or nil when absent.
func (s *EntityStore) Get(ctx context.Context, kind store.EntityKind, id string) (*store.Record, error) {
	data, err := s.client.Get(ctx, entityKey(kind, id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", kind, id, err)
	}
	var rec store.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s/%s: %w", kind, id, err)
	}
	return &rec, nil
}

// List returns every record of a kind.
func (s *EntityStore) List(ctx context.Context, kind store.EntityKind) ([]*store.Record, error) {
	keys, err := s.client.SMembers(ctx, kindSet(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", kind, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget %s: %w", kind, err)
	}
	var out []*store.Record
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // expired or deleted member; ignore
		}
		var rec store.Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

// ListEdges returns every persisted relationship.
func (s *EntityStore) ListEdges(ctx context.Context) ([]store.EdgeRecord, error) {
	members, err := s.client.SMembers(ctx, edgesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	var out []store.EdgeRecord
	for _, m := range members {
		parts := splitEdge(m)
		if parts == nil {
			continue
		}
		out = append(out, store.EdgeRecord{FromID: parts[0], ToID: parts[1], Type: parts[2]})
	}
	return out, nil
}

func splitEdge(m string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(m); i++ {
		if m[i] == '|' {
			parts = append(parts, m[start:i])
			start = i + 1
		}
	}
	parts = append(parts, m[start:])
	if len(parts) != 3 {
		return nil
	}
	return parts
}

// Commit applies the staged change set in one MULTI/EXEC pipeline. Redis
// queues the commands and executes them atomically on EXEC.
func (s *EntityStore) Commit(ctx context.Context, tx *store.Tx) error {
	if tx.Empty() {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		now := time.Now().UTC()
		for _, rec := range tx.Puts {
			rec.TsCommit = now
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal %s/%s: %w", rec.Kind, rec.ID, err)
			}
			key := entityKey(rec.Kind, rec.ID)
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, kindSet(rec.Kind), key)
		}
		for _, k := range tx.Deletes {
			key := entityKey(k.Kind, k.ID)
			pipe.Del(ctx, key)
			pipe.SRem(ctx, kindSet(k.Kind), key)
		}
		for _, e := range tx.EdgeDeletes {
			pipe.SRem(ctx, edgesKey, edgeMember(e))
		}
		for _, e := range tx.EdgePuts {
			pipe.SAdd(ctx, edgesKey, edgeMember(e))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit pipeline: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *EntityStore) Close() error {
	return s.client.Close()
}
