package protocol

import (
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
	"github.com/jacl-coder/SkyGuard-Server/internal/sim"
)

// ConvertStepResultToFrame 将一步推进结果转换为观测帧
func ConvertStepResultToFrame(res sim.StepResult) *ObservationFrame {
	return &ObservationFrame{
		EpisodeID:     res.EpisodeID,
		Step:          uint64(res.Step),
		Observation:   res.Observation,
		Reward:        float32(res.Reward),
		Done:          res.Done,
		EpisodeReturn: float32(res.EpisodeReturn),
		Truncated:     res.Truncated,
	}
}

// ConvertResetToFrame 将回合开始时的观测转换为观测帧
func ConvertResetToFrame(episodeID string, obs []float32) *ObservationFrame {
	return &ObservationFrame{
		EpisodeID:   episodeID,
		Observation: obs,
	}
}

// ConvertFrameToAction 将动作帧转换为动作，缺失分量为 0
func ConvertFrameToAction(f *ActionFrame) sim.Action {
	if f == nil {
		return sim.Action{}
	}
	vals := make([]float64, len(f.Action))
	for i, v := range f.Action {
		vals[i] = float64(v)
	}
	return sim.ActionFromSlice(vals)
}

// ConvertEpisodeResultToEntry 将回合结果转换为排行榜条目
func ConvertEpisodeResultToEntry(res *models.EpisodeResult, kind models.LeaderboardType) *models.LeaderboardEntry {
	score := res.Return
	if kind == models.LeaderboardHits {
		score = float64(res.Hits)
	}
	return &models.LeaderboardEntry{
		AgentID:   res.AgentID,
		EpisodeID: res.EpisodeID,
		Score:     score,
	}
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

// CreateSuccessResponse 创建成功响应
func CreateSuccessResponse(message string) *SuccessResponse {
	return &SuccessResponse{
		Success: true,
		Message: message,
	}
}

// CreateErrorResponse 创建错误响应
func CreateErrorResponse(message, errorCode string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Message:   message,
		ErrorCode: errorCode,
	}
}

// ArenaListResponse 场地列表响应
type ArenaListResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    []models.ArenaInfo `json:"data"`
}

// CreateArenaListResponse 创建场地列表响应
func CreateArenaListResponse(arenas []models.ArenaInfo) *ArenaListResponse {
	return &ArenaListResponse{
		Success: true,
		Message: "查询成功",
		Data:    arenas,
	}
}

// LeaderboardResponse 排行榜响应
type LeaderboardResponse struct {
	Success         bool                      `json:"success"`
	Message         string                    `json:"message"`
	Data            []models.LeaderboardEntry `json:"data"`
	LeaderboardType string                    `json:"leaderboard_type"`
}

// RankResponse 单个回合的排名响应
type RankResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	EpisodeID       string `json:"episode_id"`
	Rank            int    `json:"rank"`
	LeaderboardType string `json:"leaderboard_type"`
}

// CreateRankResponse 创建排名响应
func CreateRankResponse(episodeID string, rank int, leaderboardType string) *RankResponse {
	return &RankResponse{
		Success:         true,
		Message:         "查询成功",
		EpisodeID:       episodeID,
		Rank:            rank,
		LeaderboardType: leaderboardType,
	}
}

// EpisodeListResponse 历史回合响应
type EpisodeListResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	AgentID string                 `json:"agent_id"`
	Data    []models.EpisodeResult `json:"data"`
}

// CreateEpisodeListResponse 创建历史回合响应
func CreateEpisodeListResponse(agentID string, episodes []models.EpisodeResult) *EpisodeListResponse {
	if episodes == nil {
		episodes = []models.EpisodeResult{}
	}
	return &EpisodeListResponse{
		Success: true,
		Message: "查询成功",
		AgentID: agentID,
		Data:    episodes,
	}
}

// CreateLeaderboardResponse 创建排行榜响应
func CreateLeaderboardResponse(entries []models.LeaderboardEntry, leaderboardType string) *LeaderboardResponse {
	return &LeaderboardResponse{
		Success:         true,
		Message:         "查询成功",
		Data:            entries,
		LeaderboardType: leaderboardType,
	}
}
