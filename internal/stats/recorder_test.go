package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

type failingRecorder struct{ err error }

func (f failingRecorder) Record(context.Context, models.EpisodeResult) error { return f.err }

func TestMemoryRecorderTop(t *testing.T) {
	m := NewMemoryRecorder()
	ctx := context.Background()
	m.Record(ctx, models.EpisodeResult{EpisodeID: "a", AgentID: "x", Return: 0.5, Hits: 1})
	m.Record(ctx, models.EpisodeResult{EpisodeID: "b", AgentID: "y", Return: 2.0, Hits: 0})
	m.Record(ctx, models.EpisodeResult{EpisodeID: "c", AgentID: "x", Return: -1.0, Hits: 5})

	top, _ := m.Top(ctx, models.LeaderboardReturn, 2)
	if len(top) != 2 || top[0].EpisodeID != "b" || top[1].EpisodeID != "a" {
		t.Fatalf("return leaderboard %+v", top)
	}
	if top[0].Rank != 1 || top[1].Rank != 2 {
		t.Fatalf("ranks %+v", top)
	}

	hits, _ := m.Top(ctx, models.LeaderboardHits, 0)
	if len(hits) != 3 || hits[0].EpisodeID != "c" || hits[0].Score != 5 {
		t.Fatalf("hits leaderboard %+v", hits)
	}
}

func TestMemoryRecorderRankAndRecent(t *testing.T) {
	m := NewMemoryRecorder()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Record(ctx, models.EpisodeResult{EpisodeID: "a", AgentID: "x", Return: 0.5, EndTime: base})
	m.Record(ctx, models.EpisodeResult{EpisodeID: "b", AgentID: "y", Return: 2.0, EndTime: base.Add(time.Second)})
	m.Record(ctx, models.EpisodeResult{EpisodeID: "c", AgentID: "x", Return: -1.0, EndTime: base.Add(2 * time.Second)})

	if rank, _ := m.Rank(ctx, models.LeaderboardReturn, "a"); rank != 2 {
		t.Fatalf("rank of a = %d", rank)
	}
	if rank, _ := m.Rank(ctx, models.LeaderboardReturn, "zzz"); rank != -1 {
		t.Fatalf("missing rank = %d", rank)
	}

	recent, _ := m.Recent(ctx, "x", 0)
	if len(recent) != 2 || recent[0].EpisodeID != "c" || recent[1].EpisodeID != "a" {
		t.Fatalf("recent %+v", recent)
	}
	if recent, _ := m.Recent(ctx, "x", 1); len(recent) != 1 {
		t.Fatalf("limit ignored: %+v", recent)
	}
}

func TestMultiRecorder(t *testing.T) {
	a, b := NewMemoryRecorder(), NewMemoryRecorder()
	boom := errors.New("boom")
	m := MultiRecorder{a, nil, failingRecorder{boom}, b}

	err := m.Record(context.Background(), models.EpisodeResult{EpisodeID: "e"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("every recorder should receive the result: %d %d", a.Len(), b.Len())
	}
}

func TestLeaderboardKey(t *testing.T) {
	if LeaderboardKey(models.LeaderboardHits) != LeaderboardHitsKey {
		t.Fatal("hits key")
	}
	if LeaderboardKey(models.LeaderboardReturn) != LeaderboardReturnKey || LeaderboardKey("other") != LeaderboardReturnKey {
		t.Fatal("return key")
	}
}
