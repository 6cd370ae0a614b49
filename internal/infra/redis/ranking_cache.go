package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-arena-service/internal/domain"
)

// RankingCache mirrors published rankings so other instances can serve them.
// Per timeframe it keeps:
//
//	ZSET leaderboard:{tf}          member=userID score=rank
//	HASH leaderboard:{tf}:entries  userID -> standing JSON
//	HASH leaderboard:{tf}:meta     total, updated (unix ms)
//	STR  leaderboard:{tf}:version  bumped on every store
//
// Board, entries and meta share the TTL. The version counter never expires so
// it keeps growing across expiries.
type RankingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRankingCache(client *redis.Client, ttl time.Duration) *RankingCache {
	return &RankingCache{client: client, ttl: ttl}
}

// StoreRanking replaces the cached ranking for ranking.Timeframe in one transaction.
func (c *RankingCache) StoreRanking(ctx context.Context, ranking domain.Ranking) error {
	tf := ranking.Timeframe
	if tf == "" {
		tf = domain.TimeframeAllTime
	}
	members := make([]redis.Z, 0, len(ranking.Entries))
	fields := make(map[string]interface{}, len(ranking.Entries))
	for _, s := range ranking.Entries {
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode standing %s: %w", s.UserID, err)
		}
		members = append(members, redis.Z{Score: float64(s.Rank), Member: s.UserID})
		fields[s.UserID] = raw
	}

	zkey, hkey := boardKey(tf), entriesKey(tf)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, zkey, hkey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, zkey, members...)
			pipe.HSet(ctx, hkey, fields)
		}
		pipe.HSet(ctx, metaKey(tf), "total", ranking.Total, "updated", ranking.UpdatedAt.UnixMilli())
		pipe.Incr(ctx, versionKey(tf))
		if c.ttl > 0 {
			pipe.Expire(ctx, zkey, c.ttl)
			pipe.Expire(ctx, hkey, c.ttl)
			pipe.Expire(ctx, metaKey(tf), c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store ranking %s: %w", tf, err)
	}
	return nil
}

// Top returns up to n cached standings for tf in rank order.
func (c *RankingCache) Top(ctx context.Context, tf domain.Timeframe, n int) (domain.Ranking, error) {
	ranking := domain.Ranking{Timeframe: tf, Entries: []domain.Standing{}}
	if n <= 0 {
		return ranking, nil
	}
	ids, err := c.client.ZRange(ctx, boardKey(tf), 0, int64(n-1)).Result()
	if err != nil {
		return ranking, err
	}
	if len(ids) > 0 {
		raws, err := c.client.HMGet(ctx, entriesKey(tf), ids...).Result()
		if err != nil {
			return ranking, err
		}
		for i, raw := range raws {
			str, ok := raw.(string)
			if !ok {
				return ranking, fmt.Errorf("standing %s missing from cache", ids[i])
			}
			var s domain.Standing
			if err := json.Unmarshal([]byte(str), &s); err != nil {
				return ranking, fmt.Errorf("decode standing %s: %w", ids[i], err)
			}
			ranking.Entries = append(ranking.Entries, s)
		}
	}
	meta, err := c.client.HMGet(ctx, metaKey(tf), "total", "updated").Result()
	if err != nil {
		return ranking, err
	}
	total, err := metaInt(meta[0])
	if err != nil {
		return ranking, fmt.Errorf("decode ranking total: %w", err)
	}
	ranking.Total = int(total)
	ms, err := metaInt(meta[1])
	if err != nil {
		return ranking, fmt.Errorf("decode ranking timestamp: %w", err)
	}
	if ms > 0 {
		ranking.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return ranking, nil
}

// Version reports how many times the ranking for tf has been stored, or zero
// when nothing is stored or the stored ranking has expired.
func (c *RankingCache) Version(ctx context.Context, tf domain.Timeframe) (int64, error) {
	var version *redis.StringCmd
	var live *redis.IntCmd
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		version = pipe.Get(ctx, versionKey(tf))
		live = pipe.Exists(ctx, metaKey(tf))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if live.Val() == 0 {
		return 0, nil
	}
	raw, err := version.Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// metaInt decodes an HMGET field; a missing field is zero.
func metaInt(v interface{}) (int64, error) {
	str, ok := v.(string)
	if !ok {
		return 0, nil
	}
	return strconv.ParseInt(str, 10, 64)
}

func boardKey(tf domain.Timeframe) string   { return "leaderboard:" + string(tf) }
func entriesKey(tf domain.Timeframe) string { return boardKey(tf) + ":entries" }
func metaKey(tf domain.Timeframe) string    { return boardKey(tf) + ":meta" }
func versionKey(tf domain.Timeframe) string { return boardKey(tf) + ":version" }
