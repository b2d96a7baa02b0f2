package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "localstore:"

// RedisPersister stores each collection as one hash: field = document id, value = JSON record.
type RedisPersister struct {
	client *redis.Client
}

func NewRedisPersister(client *redis.Client) *RedisPersister {
	return &RedisPersister{client: client}
}

func (p *RedisPersister) Save(ctx context.Context, collection, id string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.client.HSet(ctx, redisKeyPrefix+collection, id, data).Err()
}

func (p *RedisPersister) Delete(ctx context.Context, collection, id string) error {
	return p.client.HDel(ctx, redisKeyPrefix+collection, id).Err()
}

func (p *RedisPersister) LoadAll(ctx context.Context, collection string) (map[string]Record, error) {
	raw, err := p.client.HGetAll(ctx, redisKeyPrefix+collection).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(raw))
	for id, data := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		out[id] = rec
	}
	return out, nil
}
