package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/tbxark/flowagent/types"
)

const DefaultNamespace = "flowagent:conversation"

// RedisStore keeps each state as a JSON string under "<namespace>:<id>".
// States never expire.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(id string) string {
	return s.namespace + ":" + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*types.ConversationState, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var state types.ConversationState
	if err := sonic.UnmarshalString(raw, &state); err != nil {
		return nil, fmt.Errorf("decode state %s failed: %w", id, err)
	}
	if state.Inputs == nil {
		state.Inputs = map[string]any{}
	}
	if state.Missing == nil {
		state.Missing = []string{}
	}
	return &state, nil
}

func (s *RedisStore) Set(ctx context.Context, id string, state *types.ConversationState) error {
	raw, err := sonic.MarshalString(state)
	if err != nil {
		return fmt.Errorf("encode state %s failed: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Has(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}
