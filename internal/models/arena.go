package models

import (
	"time"
)

// ArenaMode 场地运行模式
type ArenaMode string

const (
	// ModeTrain 训练模式，客户端逐步驱动
	ModeTrain ArenaMode = "train"
	// ModePlay 实时模式，服务端定时推进
	ModePlay ArenaMode = "play"
)

// ArenaStatus 场地状态
type ArenaStatus string

const (
	// ArenaWaiting 等待回合开始
	ArenaWaiting ArenaStatus = "waiting"
	// ArenaRunning 回合进行中
	ArenaRunning ArenaStatus = "running"
	// ArenaClosed 已关闭
	ArenaClosed ArenaStatus = "closed"
)

// ArenaInfo 场地信息
type ArenaInfo struct {
	ID         string      `json:"id"`
	Mode       ArenaMode   `json:"mode"`
	Status     ArenaStatus `json:"status"`
	Clients    int         `json:"clients"`
	EpisodeID  string      `json:"episode_id,omitempty"`
	Step       int         `json:"step"`
	LiveDrones int         `json:"live_drones"`
	CreatedAt  time.Time   `json:"created_at"`
	LastActive time.Time   `json:"last_active"`
}

// 注意：表结构定义已移至 pkg/db/schema.go 统一管理
