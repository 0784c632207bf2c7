package stats

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// Recorder 回合结果记录器
type Recorder interface {
	Record(ctx context.Context, res models.EpisodeResult) error
}

// Leaderboard 排行榜查询，Rank 从 1 开始，未上榜返回 -1
type Leaderboard interface {
	Top(ctx context.Context, kind models.LeaderboardType, limit int) ([]models.LeaderboardEntry, error)
	Rank(ctx context.Context, kind models.LeaderboardType, episodeID string) (int, error)
}

// EpisodeStore 按智能体查询历史回合，结束时间倒序
type EpisodeStore interface {
	Recent(ctx context.Context, agentID string, limit int) ([]models.EpisodeResult, error)
}

// MultiRecorder 依次写入多个记录器，返回合并后的错误
type MultiRecorder []Recorder

// Record 写入全部记录器
func (m MultiRecorder) Record(ctx context.Context, res models.EpisodeResult) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryRecorder 内存记录器，用于无外部存储的运行和测试
type MemoryRecorder struct {
	results []models.EpisodeResult
	mutex   sync.RWMutex
}

// NewMemoryRecorder 创建内存记录器
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record 追加回合结果
func (m *MemoryRecorder) Record(_ context.Context, res models.EpisodeResult) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.results = append(m.results, res)
	return nil
}

// Results 已记录的回合结果副本
func (m *MemoryRecorder) Results() []models.EpisodeResult {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make([]models.EpisodeResult, len(m.results))
	copy(out, m.results)
	return out
}

// Len 已记录数量
func (m *MemoryRecorder) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.results)
}

// Top 按分数降序返回前 limit 个回合
func (m *MemoryRecorder) Top(_ context.Context, kind models.LeaderboardType, limit int) ([]models.LeaderboardEntry, error) {
	entries := m.ranked(kind)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Rank 回合在排行榜中的名次
func (m *MemoryRecorder) Rank(_ context.Context, kind models.LeaderboardType, episodeID string) (int, error) {
	for _, e := range m.ranked(kind) {
		if e.EpisodeID == episodeID {
			return e.Rank, nil
		}
	}
	return -1, nil
}

// Recent 智能体最近 limit 个回合
func (m *MemoryRecorder) Recent(_ context.Context, agentID string, limit int) ([]models.EpisodeResult, error) {
	var out []models.EpisodeResult
	for _, res := range m.Results() {
		if res.AgentID == agentID {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndTime.After(out[j].EndTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRecorder) ranked(kind models.LeaderboardType) []models.LeaderboardEntry {
	m.mutex.RLock()
	entries := make([]models.LeaderboardEntry, 0, len(m.results))
	for _, res := range m.results {
		entries = append(entries, models.LeaderboardEntry{
			AgentID:   res.AgentID,
			EpisodeID: res.EpisodeID,
			Score:     score(res, kind),
		})
	}
	m.mutex.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// score 按排行榜类型取分数
func score(res models.EpisodeResult, kind models.LeaderboardType) float64 {
	if kind == models.LeaderboardHits {
		return float64(res.Hits)
	}
	return res.Return
}
