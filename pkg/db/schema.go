// schema.go

package db

// CreateAllTablesSQL 创建所有表的SQL语句
const CreateAllTablesSQL = `
-- 回合记录表
CREATE TABLE IF NOT EXISTS episode_records (
    id SERIAL PRIMARY KEY,
    episode_id UUID UNIQUE NOT NULL,
    arena_id VARCHAR(64),
    agent_id VARCHAR(64) NOT NULL,
    steps INT NOT NULL,
    episode_return DOUBLE PRECISION NOT NULL,
    shots INT DEFAULT 0,
    hits INT DEFAULT 0,
    truncated BOOLEAN DEFAULT false,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

-- 智能体汇总视图
CREATE OR REPLACE VIEW agent_summary AS
SELECT
    agent_id,
    COUNT(*) AS episodes,
    AVG(episode_return) AS avg_return,
    MAX(episode_return) AS best_return,
    SUM(hits) AS total_hits,
    SUM(shots) AS total_shots,
    CASE WHEN SUM(shots) > 0 THEN SUM(hits) * 1.0 / SUM(shots) ELSE 0 END AS accuracy
FROM
    episode_records
GROUP BY
    agent_id;

CREATE INDEX IF NOT EXISTS idx_episode_records_agent_id ON episode_records(agent_id);
CREATE INDEX IF NOT EXISTS idx_episode_records_arena_id ON episode_records(arena_id);
CREATE INDEX IF NOT EXISTS idx_episode_records_return ON episode_records(episode_return DESC);
`

// DropAllTablesSQL 删除所有表
const DropAllTablesSQL = `
DROP VIEW IF EXISTS agent_summary;
DROP TABLE IF EXISTS episode_records;
`

// InitAllTables 初始化所有数据库表
func InitAllTables() error {
	_, err := DB.Exec(CreateAllTablesSQL)
	return err
}

// DropAllTables 删除所有数据库表
func DropAllTables() error {
	_, err := DB.Exec(DropAllTablesSQL)
	return err
}
