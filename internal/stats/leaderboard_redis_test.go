package stats

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

func newTestLeaderboard(t *testing.T, keep int64) (*RedisLeaderboard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLeaderboard(client, keep), mr
}

func TestRedisLeaderboardRecord(t *testing.T) {
	lb, mr := newTestLeaderboard(t, 0)
	ctx := context.Background()

	res := models.EpisodeResult{EpisodeID: "ep-1", AgentID: "agent-1", Return: 2.5, Hits: 4}
	if err := lb.Record(ctx, res); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if got, err := mr.ZScore(LeaderboardReturnKey, "ep-1"); err != nil || got != 2.5 {
		t.Fatalf("return score %v %v", got, err)
	}
	if got, err := mr.ZScore(LeaderboardHitsKey, "ep-1"); err != nil || got != 4 {
		t.Fatalf("hits score %v %v", got, err)
	}
	if ttl := mr.TTL(EpisodeInfoPrefix + "ep-1"); ttl != EpisodeInfoTTL {
		t.Fatalf("episode info ttl %v", ttl)
	}
}

func TestRedisLeaderboardTopAndRank(t *testing.T) {
	lb, mr := newTestLeaderboard(t, 0)
	ctx := context.Background()

	lb.Record(ctx, models.EpisodeResult{EpisodeID: "a", AgentID: "alice", Return: 1, Hits: 9})
	lb.Record(ctx, models.EpisodeResult{EpisodeID: "b", AgentID: "bob", Return: 3, Hits: 2})
	lb.Record(ctx, models.EpisodeResult{EpisodeID: "c", AgentID: "carol", Return: 2, Hits: 5})

	top, err := lb.Top(ctx, models.LeaderboardReturn, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 || top[0].EpisodeID != "b" || top[0].AgentID != "bob" || top[0].Score != 3 || top[0].Rank != 1 {
		t.Fatalf("top %+v", top)
	}
	if top[1].EpisodeID != "c" || top[1].AgentID != "carol" || top[1].Rank != 2 {
		t.Fatalf("second %+v", top[1])
	}

	// 详情过期后仍返回分数
	mr.Del(EpisodeInfoPrefix + "a")
	hits, _ := lb.Top(ctx, models.LeaderboardHits, 0)
	if len(hits) != 3 || hits[0].EpisodeID != "a" || hits[0].AgentID != "" || hits[0].Score != 9 {
		t.Fatalf("hits %+v", hits)
	}

	if rank, err := lb.Rank(ctx, models.LeaderboardHits, "c"); err != nil || rank != 2 {
		t.Fatalf("rank %d %v", rank, err)
	}
	if rank, err := lb.Rank(ctx, models.LeaderboardReturn, "missing"); err != nil || rank != -1 {
		t.Fatalf("missing rank %d %v", rank, err)
	}
}

func TestRedisLeaderboardKeep(t *testing.T) {
	lb, mr := newTestLeaderboard(t, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		res := models.EpisodeResult{EpisodeID: fmt.Sprintf("ep-%d", i), Return: float64(i), Hits: 10 - i}
		if err := lb.Record(ctx, res); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	ret, _ := mr.ZMembers(LeaderboardReturnKey)
	if len(ret) != 2 {
		t.Fatalf("return board kept %v", ret)
	}
	if _, err := mr.ZScore(LeaderboardReturnKey, "ep-0"); err == nil {
		t.Fatal("lowest return should be trimmed")
	}
	if _, err := mr.ZScore(LeaderboardHitsKey, "ep-0"); err != nil {
		t.Fatal("highest hits should be kept")
	}
	if rank, _ := lb.Rank(ctx, models.LeaderboardReturn, "ep-3"); rank != 1 {
		t.Fatalf("best return rank %d", rank)
	}
}
