package stats

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// PostgresStore 回合记录持久化到 episode_records 表
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建回合记录存储
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Record 插入回合记录，重复的回合ID忽略
func (p *PostgresStore) Record(ctx context.Context, res models.EpisodeResult) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO episode_records
			(episode_id, arena_id, agent_id, steps, episode_return, shots, hits, truncated, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (episode_id) DO NOTHING`,
		res.EpisodeID, res.ArenaID, res.AgentID, res.Steps, res.Return,
		res.Shots, res.Hits, res.Truncated, res.StartTime, res.EndTime,
	)
	if err != nil {
		return fmt.Errorf("写入回合记录失败: %w", err)
	}
	return nil
}

// Recent 查询智能体最近的回合
func (p *PostgresStore) Recent(ctx context.Context, agentID string, limit int) ([]models.EpisodeResult, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT episode_id, COALESCE(arena_id, ''), agent_id, steps, episode_return, shots, hits, truncated, start_time, end_time
		FROM episode_records
		WHERE agent_id = $1
		ORDER BY end_time DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询回合记录失败: %w", err)
	}
	defer rows.Close()

	var results []models.EpisodeResult
	for rows.Next() {
		var r models.EpisodeResult
		if err := rows.Scan(&r.EpisodeID, &r.ArenaID, &r.AgentID, &r.Steps, &r.Return,
			&r.Shots, &r.Hits, &r.Truncated, &r.StartTime, &r.EndTime); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
