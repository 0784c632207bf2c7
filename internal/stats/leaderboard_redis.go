package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// 排行榜Redis键名
const (
	LeaderboardReturnKey = "leaderboard:return"
	LeaderboardHitsKey   = "leaderboard:hits"

	// 回合详细信息键前缀
	EpisodeInfoPrefix = "episode:info:"

	// 回合详细信息缓存时间
	EpisodeInfoTTL = 24 * time.Hour
)

// RedisLeaderboard Redis排行榜
type RedisLeaderboard struct {
	client *redis.Client
	ttl    time.Duration
	keep   int64
}

// NewRedisLeaderboard 创建Redis排行榜，keep 为每个榜保留的回合数，0 不裁剪
func NewRedisLeaderboard(client *redis.Client, keep int64) *RedisLeaderboard {
	return &RedisLeaderboard{
		client: client,
		ttl:    EpisodeInfoTTL,
		keep:   keep,
	}
}

// Record 写入两个有序集合并缓存回合详情，超出 keep 的低分回合同时移除
func (rl *RedisLeaderboard) Record(ctx context.Context, res models.EpisodeResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("序列化回合结果失败: %w", err)
	}

	pipe := rl.client.TxPipeline()
	pipe.ZAdd(ctx, LeaderboardReturnKey, &redis.Z{Score: res.Return, Member: res.EpisodeID})
	pipe.ZAdd(ctx, LeaderboardHitsKey, &redis.Z{Score: float64(res.Hits), Member: res.EpisodeID})
	pipe.Set(ctx, EpisodeInfoPrefix+res.EpisodeID, data, rl.ttl)
	rl.trim(ctx, pipe)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入排行榜失败: %w", err)
	}
	return nil
}

// Top 获取排行榜（按分数降序）
func (rl *RedisLeaderboard) Top(ctx context.Context, kind models.LeaderboardType, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	members, err := rl.client.ZRevRangeWithScores(ctx, LeaderboardKey(kind), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(members))
	for i, member := range members {
		episodeID, ok := member.Member.(string)
		if !ok {
			continue
		}
		entry := models.LeaderboardEntry{
			EpisodeID: episodeID,
			Score:     member.Score,
			Rank:      i + 1,
		}
		// 详情过期时仅返回分数
		if info, err := rl.episodeInfo(ctx, episodeID); err == nil {
			entry.AgentID = info.AgentID
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Rank 获取回合排名，不在排行榜中返回 -1
func (rl *RedisLeaderboard) Rank(ctx context.Context, kind models.LeaderboardType, episodeID string) (int, error) {
	rank, err := rl.client.ZRevRank(ctx, LeaderboardKey(kind), episodeID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, nil
		}
		return -1, err
	}
	return int(rank) + 1, nil
}

// trim 只保留前 keep 名
func (rl *RedisLeaderboard) trim(ctx context.Context, pipe redis.Pipeliner) {
	if rl.keep <= 0 {
		return
	}
	for _, key := range []string{LeaderboardReturnKey, LeaderboardHitsKey} {
		pipe.ZRemRangeByRank(ctx, key, 0, -rl.keep-1)
	}
}

// LeaderboardKey 获取排行榜键名
func LeaderboardKey(kind models.LeaderboardType) string {
	if kind == models.LeaderboardHits {
		return LeaderboardHitsKey
	}
	return LeaderboardReturnKey
}

// episodeInfo 从Redis获取回合详情
func (rl *RedisLeaderboard) episodeInfo(ctx context.Context, episodeID string) (*models.EpisodeResult, error) {
	data, err := rl.client.Get(ctx, EpisodeInfoPrefix+episodeID).Bytes()
	if err != nil {
		return nil, err
	}

	var res models.EpisodeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
