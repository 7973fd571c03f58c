// Package redis mirrors the in-process presence registry into a Redis set,
// so the REST presence endpoint (and anything else outside the hub) can read
// who is online without touching hub internals.
package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const onlineKey = "online_users"

type Presence struct {
	cli *redis.Client
}

// Connect connects to Redis from a URL and pings it to make sure the
// connection works.
func Connect(ctx context.Context, redisURL string) (*Presence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Presence{cli: cli}, nil
}

func (p *Presence) SetOnline(ctx context.Context, userID int64) error {
	if err := p.cli.SAdd(ctx, onlineKey, userID).Err(); err != nil {
		return fmt.Errorf("sadd online: %w", err)
	}
	return nil
}

func (p *Presence) SetOffline(ctx context.Context, userID int64) error {
	if err := p.cli.SRem(ctx, onlineKey, userID).Err(); err != nil {
		return fmt.Errorf("srem online: %w", err)
	}
	return nil
}

// OnlineUserIDs returns the ids currently in the mirror set.
func (p *Presence) OnlineUserIDs(ctx context.Context) ([]int64, error) {
	members, err := p.cli.SMembers(ctx, onlineKey).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers online: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Reset clears the mirror. Called at startup so a crashed process does not
// leave ghosts online.
func (p *Presence) Reset(ctx context.Context) error {
	if err := p.cli.Del(ctx, onlineKey).Err(); err != nil {
		return fmt.Errorf("del online: %w", err)
	}
	return nil
}

func (p *Presence) Close() error {
	return p.cli.Close()
}
