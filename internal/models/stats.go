// stats.go

package models

import (
	"time"
)

// EpisodeResult 回合结果
type EpisodeResult struct {
	EpisodeID string    `json:"episode_id"`
	ArenaID   string    `json:"arena_id"`
	AgentID   string    `json:"agent_id"`
	Steps     int       `json:"steps"`
	Return    float64   `json:"return"`    // 累计奖励
	Shots     int       `json:"shots"`     // 开火次数
	Hits      int       `json:"hits"`      // 命中次数
	Truncated bool      `json:"truncated"` // 是否因步数上限结束
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Accuracy 命中率
func (r EpisodeResult) Accuracy() float64 {
	if r.Shots == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Shots)
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	AgentID   string  `json:"agent_id"`
	EpisodeID string  `json:"episode_id"`
	Score     float64 `json:"score"`
	Rank      int     `json:"rank"` // 排名
}

// LeaderboardType 排行榜类型
type LeaderboardType string

const (
	// LeaderboardReturn 回合累计奖励排行榜
	LeaderboardReturn LeaderboardType = "return"
	// LeaderboardHits 命中次数排行榜
	LeaderboardHits LeaderboardType = "hits"
)
