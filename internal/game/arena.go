package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
	"github.com/jacl-coder/SkyGuard-Server/internal/protocol"
	"github.com/jacl-coder/SkyGuard-Server/internal/sim"
	"github.com/jacl-coder/SkyGuard-Server/internal/stats"
)

// ErrWrongMode 当前场地模式不支持该操作
var ErrWrongMode = errors.New("operation not supported in this arena mode")

// 回合结果写入超时
const recordTimeout = 2 * time.Second

// Arena 场地，持有一个模拟实例
// 训练模式由客户端逐步驱动，实时模式由服务端定时推进
type Arena struct {
	ID          string
	Mode        models.ArenaMode
	CreatedAt   time.Time
	IdleTimeout time.Duration

	cfg      *config.Config
	sim      *sim.Simulation
	simMutex sync.Mutex
	keyboard *sim.KeyboardSource
	recorder stats.Recorder
	// finished 由 simMutex 保护，解锁后再写入记录器
	finished []models.EpisodeResult
	records  conc.WaitGroup

	// 连接管理
	clients      map[string]*Connection
	status       models.ArenaStatus
	agentID      string
	lastActivity time.Time
	mutex        sync.RWMutex

	shutdown chan struct{}
	stopOnce sync.Once
}

// NewArena 创建场地，policy 为空时实时模式使用键盘输入
func NewArena(cfg *config.Config, mode models.ArenaMode, recorder stats.Recorder, policy sim.ActionSource) *Arena {
	now := time.Now()
	a := &Arena{
		ID:           uuid.New().String(),
		Mode:         mode,
		CreatedAt:    now,
		IdleTimeout:  5 * time.Minute,
		cfg:          cfg,
		keyboard:     sim.NewKeyboardSource(policy == nil),
		recorder:     recorder,
		clients:      make(map[string]*Connection),
		status:       models.ArenaWaiting,
		shutdown:     make(chan struct{}),
		lastActivity: now,
	}

	var source sim.ActionSource = a.keyboard
	if policy != nil {
		source = policy
	}
	a.sim = sim.New(cfg,
		sim.WithArenaID(a.ID),
		sim.WithActionSource(source),
		sim.WithEpisodeListener(a.onEpisodeEnd),
	)
	return a
}

// Start 启动场地，实时模式开启定时循环
func (a *Arena) Start() {
	a.mutex.Lock()
	if a.status != models.ArenaWaiting {
		a.mutex.Unlock()
		return
	}
	a.status = models.ArenaRunning
	a.mutex.Unlock()

	log.Info("场地启动", "arena", a.ID, "mode", a.Mode)
	if a.Mode == models.ModePlay {
		go a.loop()
	}
}

// Stop 停止场地
func (a *Arena) Stop() {
	a.stopOnce.Do(func() {
		close(a.shutdown)
		a.mutex.Lock()
		a.status = models.ArenaClosed
		a.mutex.Unlock()
		a.records.Wait()
		log.Info("场地已停止", "arena", a.ID)
	})
}

// AddClient 连接加入场地，首个连接的智能体ID记入回合结果
func (a *Arena) AddClient(conn *Connection) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.clients[conn.ID] = conn
	if a.agentID == "" {
		a.agentID = conn.AgentID
	}
	a.lastActivity = time.Now()
	log.Debug("连接加入场地", "arena", a.ID, "agent", conn.AgentID)
}

// RemoveClient 连接离开场地
func (a *Arena) RemoveClient(connID string) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if _, ok := a.clients[connID]; !ok {
		return
	}
	delete(a.clients, connID)
	a.lastActivity = time.Now()

	if len(a.clients) == 0 {
		a.keyboard.SetPressed(nil)
		log.Debug("场地已空，等待清理", "arena", a.ID)
	}
}

// ClientCount 连接数量
func (a *Arena) ClientCount() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return len(a.clients)
}

// Status 场地状态
func (a *Arena) Status() models.ArenaStatus {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.status
}

// ShouldCleanup 已关闭，或空闲超过 IdleTimeout
func (a *Arena) ShouldCleanup() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.status == models.ArenaClosed {
		return true
	}
	return len(a.clients) == 0 && time.Since(a.lastActivity) > a.IdleTimeout
}

// Reset 开始新回合
func (a *Arena) Reset() *protocol.ObservationFrame {
	a.touch()

	a.simMutex.Lock()
	defer a.simMutex.Unlock()
	obs := a.sim.Reset()
	return protocol.ConvertResetToFrame(a.sim.EpisodeID(), obs)
}

// Step 训练模式下用客户端动作推进一步
func (a *Arena) Step(action sim.Action) (*protocol.ObservationFrame, error) {
	if a.Mode != models.ModeTrain {
		return nil, ErrWrongMode
	}
	a.touch()

	a.simMutex.Lock()
	res := a.sim.Advance(action, a.cfg.Episode.FixedDelta)
	finished := a.takeFinished()
	a.simMutex.Unlock()

	a.publishEpisodes(finished)
	if res.Hits > 0 {
		a.broadcastHits(res)
	}
	return protocol.ConvertStepResultToFrame(res), nil
}

// Observe 最近一次观测，不推进也不计入惩罚
func (a *Arena) Observe() *protocol.ObservationFrame {
	a.simMutex.Lock()
	defer a.simMutex.Unlock()
	return &protocol.ObservationFrame{
		EpisodeID:     a.sim.EpisodeID(),
		Step:          uint64(a.sim.StepCount()),
		Observation:   a.sim.LastObservation(),
		EpisodeReturn: float32(a.sim.Turret().EpisodeReturn()),
	}
}

// SetKeys 更新键盘按键状态
func (a *Arena) SetKeys(keys []sim.Key) error {
	if a.Mode != models.ModePlay {
		return ErrWrongMode
	}
	a.touch()
	a.keyboard.SetPressed(keys)
	return nil
}

// Snapshot 当前世界状态
func (a *Arena) Snapshot() models.WorldSnapshot {
	a.simMutex.Lock()
	defer a.simMutex.Unlock()
	return a.sim.Snapshot()
}

// Info 场地信息
func (a *Arena) Info() models.ArenaInfo {
	a.simMutex.Lock()
	episodeID := a.sim.EpisodeID()
	step := a.sim.StepCount()
	live := len(a.sim.World().LiveDrones())
	a.simMutex.Unlock()

	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return models.ArenaInfo{
		ID:         a.ID,
		Mode:       a.Mode,
		Status:     a.status,
		Clients:    len(a.clients),
		EpisodeID:  episodeID,
		Step:       step,
		LiveDrones: live,
		CreatedAt:  a.CreatedAt,
		LastActive: a.lastActivity,
	}
}

// loop 实时模式主循环
func (a *Arena) loop() {
	dt := a.cfg.Episode.FixedDelta
	ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.update(dt)
		case <-a.shutdown:
			return
		}
	}
}

// update 推进一步并广播状态
func (a *Arena) update(dt float64) {
	a.simMutex.Lock()
	res := a.sim.Step(dt)
	snap := a.sim.Snapshot()
	finished := a.takeFinished()
	a.simMutex.Unlock()

	a.publishEpisodes(finished)

	frame := protocol.ConvertStepResultToFrame(res)
	for _, c := range a.clientList() {
		c.sendFrame(frame)
		c.sendMessage("snapshot", snap)
	}
	if res.Hits > 0 {
		a.broadcastHits(res)
	}
}

// onEpisodeEnd 在 simMutex 内调用，只暂存结果
func (a *Arena) onEpisodeEnd(res models.EpisodeResult) {
	a.finished = append(a.finished, res)
}

func (a *Arena) takeFinished() []models.EpisodeResult {
	out := a.finished
	a.finished = nil
	return out
}

// publishEpisodes 异步写入记录器并通知所有连接
func (a *Arena) publishEpisodes(results []models.EpisodeResult) {
	if len(results) == 0 {
		return
	}
	a.mutex.RLock()
	agentID := a.agentID
	a.mutex.RUnlock()
	if agentID == "" {
		agentID = "anonymous"
	}

	clients := a.clientList()
	for _, res := range results {
		res.AgentID = agentID
		if a.recorder != nil {
			a.records.Go(func() {
				ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
				defer cancel()
				if err := a.recorder.Record(ctx, res); err != nil {
					log.Warn("记录回合结果失败", "episode", res.EpisodeID, "err", err)
				}
			})
		}
		for _, c := range clients {
			c.sendMessage("episode_end", res)
		}
	}
}

// WaitRecorded 等待已提交的回合结果写完
func (a *Arena) WaitRecorded() {
	a.records.Wait()
}

// broadcastHits 广播命中事件
func (a *Arena) broadcastHits(res sim.StepResult) {
	payload := map[string]interface{}{
		"episode_id": res.EpisodeID,
		"step":       res.Step,
		"hits":       res.Hits,
	}
	for _, c := range a.clientList() {
		c.sendMessage("hit", payload)
	}
}

func (a *Arena) clientList() []*Connection {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	out := make([]*Connection, 0, len(a.clients))
	for _, c := range a.clients {
		out = append(out, c)
	}
	return out
}

func (a *Arena) touch() {
	a.mutex.Lock()
	a.lastActivity = time.Now()
	a.mutex.Unlock()
}
