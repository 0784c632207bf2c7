package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
	"github.com/jacl-coder/SkyGuard-Server/internal/protocol"
	"github.com/jacl-coder/SkyGuard-Server/internal/sim"
	"github.com/jacl-coder/SkyGuard-Server/internal/stats"
)

var (
	// ErrArenaFull 场地数已达上限
	ErrArenaFull = errors.New("arena limit reached")
	// ErrArenaNotFound 场地不存在
	ErrArenaNotFound = errors.New("arena not found")
)

// ServerOption GameServer 选项
type ServerOption func(*GameServer)

// WithRecorder 设置回合结果记录器
func WithRecorder(r stats.Recorder) ServerOption {
	return func(s *GameServer) { s.recorder = r }
}

// WithLeaderboard 设置排行榜查询
func WithLeaderboard(l stats.Leaderboard) ServerOption {
	return func(s *GameServer) { s.leaderboard = l }
}

// WithEpisodeStore 设置历史回合查询
func WithEpisodeStore(st stats.EpisodeStore) ServerOption {
	return func(s *GameServer) { s.episodes = st }
}

// WithPolicy 实时模式使用策略网络代替键盘
func WithPolicy(p sim.ActionSource) ServerOption {
	return func(s *GameServer) { s.policy = p }
}

// GameServer 训练/对战服务器
type GameServer struct {
	config      *config.Config
	arenas      map[string]*Arena
	arenasMutex sync.RWMutex
	httpServer  *http.Server
	connections map[string]*Connection
	connMutex   sync.RWMutex

	auth        *Authenticator
	limiter     *RateLimiter
	recorder    stats.Recorder
	leaderboard stats.Leaderboard
	episodes    stats.EpisodeStore
	policy      sim.ActionSource

	// 关闭信号
	shutdown  chan struct{}
	isRunning bool
}

// NewGameServer 创建新的游戏服务器
func NewGameServer(cfg *config.Config, opts ...ServerOption) *GameServer {
	s := &GameServer{
		config:      cfg,
		arenas:      make(map[string]*Arena),
		connections: make(map[string]*Connection),
		auth:        NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		limiter:     NewRateLimiter(cfg.Server.RateLimit),
		shutdown:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Auth 令牌签发与校验
func (s *GameServer) Auth() *Authenticator { return s.auth }

// Start 启动游戏服务器
func (s *GameServer) Start() error {
	if s.isRunning {
		return fmt.Errorf("服务器已经在运行")
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Server.GamePort),
		Handler: s.Handler(),
	}

	go func() {
		log.Info("游戏服务器启动", "port", s.config.Server.GamePort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP服务器错误", "err", err)
		}
	}()

	// 启动场地管理
	go s.arenaManager()

	s.isRunning = true
	return nil
}

// Stop 停止游戏服务器
func (s *GameServer) Stop() error {
	select {
	case <-s.shutdown:
		return nil
	default:
		close(s.shutdown)
	}
	s.limiter.Stop()

	// 关闭所有场地
	s.arenasMutex.Lock()
	for _, arena := range s.arenas {
		arena.Stop()
	}
	s.arenasMutex.Unlock()

	// 关闭所有连接
	s.connMutex.Lock()
	for _, c := range s.connections {
		c.close()
	}
	s.connMutex.Unlock()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("HTTP服务器关闭错误: %w", err)
		}
	}

	s.isRunning = false
	log.Info("游戏服务器已停止")
	return nil
}

// Handler 创建HTTP处理器
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket 连接端点
	mux.HandleFunc("/ws", s.handleWSConnection)

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/arenas", s.handleArenas)
	mux.HandleFunc("/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/episodes", s.handleEpisodes)

	return LoggingMiddleware(CORSMiddleware(s.limiter.Middleware(mux)))
}

// handleArenas GET 列出场地，POST 创建场地
func (s *GameServer) handleArenas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		infos := make([]models.ArenaInfo, 0)
		for _, a := range s.ListArenas() {
			infos = append(infos, a.Info())
		}
		writeJSON(w, http.StatusOK, protocol.CreateArenaListResponse(infos))
	case http.MethodPost:
		mode := models.ArenaMode(r.URL.Query().Get("mode"))
		if mode == "" {
			mode = models.ModeTrain
		}
		if mode != models.ModeTrain && mode != models.ModePlay {
			writeJSON(w, http.StatusBadRequest, protocol.CreateErrorResponse("未知场地模式", "BAD_MODE"))
			return
		}
		arena, err := s.CreateArena(mode)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, protocol.CreateErrorResponse(err.Error(), "ARENA_FULL"))
			return
		}
		writeJSON(w, http.StatusCreated, arena.Info())
	default:
		http.Error(w, "不支持的方法", http.StatusMethodNotAllowed)
	}
}

// handleLeaderboard 查询排行榜，带 episode_id 时只查该回合排名
func (s *GameServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.leaderboard == nil {
		writeJSON(w, http.StatusNotFound, protocol.CreateErrorResponse("排行榜未启用", "LEADERBOARD_DISABLED"))
		return
	}

	query := r.URL.Query()
	kind := models.LeaderboardType(query.Get("type"))
	if kind == "" {
		kind = models.LeaderboardReturn
	}

	if episodeID := query.Get("episode_id"); episodeID != "" {
		rank, err := s.leaderboard.Rank(r.Context(), kind, episodeID)
		if err != nil {
			log.Warn("查询回合排名失败", "episode", episodeID, "err", err)
			writeJSON(w, http.StatusInternalServerError, protocol.CreateErrorResponse("查询排名失败", "LEADERBOARD_ERROR"))
			return
		}
		if rank < 0 {
			writeJSON(w, http.StatusNotFound, protocol.CreateErrorResponse("回合不在排行榜中", "NOT_RANKED"))
			return
		}
		writeJSON(w, http.StatusOK, protocol.CreateRankResponse(episodeID, rank, string(kind)))
		return
	}

	limit := queryLimit(query.Get("limit"))

	entries, err := s.leaderboard.Top(r.Context(), kind, limit)
	if err != nil {
		log.Warn("查询排行榜失败", "err", err)
		writeJSON(w, http.StatusInternalServerError, protocol.CreateErrorResponse("查询排行榜失败", "LEADERBOARD_ERROR"))
		return
	}
	writeJSON(w, http.StatusOK, protocol.CreateLeaderboardResponse(entries, string(kind)))
}

// handleEpisodes 查询智能体最近的回合
func (s *GameServer) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.episodes == nil {
		writeJSON(w, http.StatusNotFound, protocol.CreateErrorResponse("回合记录未启用", "EPISODES_DISABLED"))
		return
	}
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		writeJSON(w, http.StatusBadRequest, protocol.CreateErrorResponse("缺少 agent_id", "BAD_REQUEST"))
		return
	}

	episodes, err := s.episodes.Recent(r.Context(), agentID, queryLimit(r.URL.Query().Get("limit")))
	if err != nil {
		log.Warn("查询回合记录失败", "agent", agentID, "err", err)
		writeJSON(w, http.StatusInternalServerError, protocol.CreateErrorResponse("查询回合记录失败", "EPISODES_ERROR"))
		return
	}
	writeJSON(w, http.StatusOK, protocol.CreateEpisodeListResponse(agentID, episodes))
}

// queryLimit 解析 limit 参数，范围 1..100，默认 10
func queryLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 100 {
		return 10
	}
	return limit
}

// arenaManager 场地管理器
func (s *GameServer) arenaManager() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupArenas()
		case <-s.shutdown:
			return
		}
	}
}

// cleanupArenas 清理空闲场地
func (s *GameServer) cleanupArenas() {
	s.arenasMutex.Lock()
	defer s.arenasMutex.Unlock()

	for id, arena := range s.arenas {
		if arena.ShouldCleanup() {
			log.Info("清理空闲场地", "arena", id)
			arena.Stop()
			delete(s.arenas, id)
		}
	}
}

// CreateArena 创建场地
func (s *GameServer) CreateArena(mode models.ArenaMode) (*Arena, error) {
	s.arenasMutex.Lock()
	defer s.arenasMutex.Unlock()

	if limit := s.config.Server.MaxArenas; limit > 0 && len(s.arenas) >= limit {
		return nil, ErrArenaFull
	}

	arena := NewArena(s.config, mode, s.recorder, s.policy)
	s.arenas[arena.ID] = arena
	arena.Start()

	log.Info("创建场地", "arena", arena.ID, "mode", mode)
	return arena, nil
}

// GetArena 获取场地
func (s *GameServer) GetArena(arenaID string) (*Arena, bool) {
	s.arenasMutex.RLock()
	defer s.arenasMutex.RUnlock()

	arena, exists := s.arenas[arenaID]
	return arena, exists
}

// ListArenas 列出所有场地
func (s *GameServer) ListArenas() []*Arena {
	s.arenasMutex.RLock()
	defer s.arenasMutex.RUnlock()

	arenas := make([]*Arena, 0, len(s.arenas))
	for _, arena := range s.arenas {
		arenas = append(arenas, arena)
	}
	return arenas
}

// ConnectionCount 当前连接数
func (s *GameServer) ConnectionCount() int {
	s.connMutex.RLock()
	defer s.connMutex.RUnlock()
	return len(s.connections)
}

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("写入响应失败", "err", err)
	}
}
