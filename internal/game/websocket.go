// websocket.go

package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
	"github.com/jacl-coder/SkyGuard-Server/internal/protocol"
	"github.com/jacl-coder/SkyGuard-Server/internal/sim"
)

const (
	// 写入超时时间
	writeWait = 10 * time.Second

	// 读取超时时间
	pongWait = 60 * time.Second

	// 发送 ping 的间隔时间
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小
	maxMessageSize = 512 * 1024 // 512KB

	// 发送队列长度
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 允许所有跨域请求
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message 消息结构
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinArenaRequest 加入场地请求，ArenaID 为空时新建
type JoinArenaRequest struct {
	ArenaID string           `json:"arena_id"`
	Mode    models.ArenaMode `json:"mode"`
}

// KeysRequest 键盘状态
type KeysRequest struct {
	Pressed []sim.Key `json:"pressed"`
}

// outbound 待写出的消息
type outbound struct {
	messageType int
	data        []byte
}

// Connection 客户端连接
type Connection struct {
	ID         string
	AgentID    string
	Arena      *Arena
	LastActive time.Time

	send   chan outbound
	codec  protocol.Codec
	closed bool
	mutex  sync.Mutex
}

// newConnection 创建连接
func newConnection(agentID string, codec protocol.Codec) *Connection {
	return &Connection{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		LastActive: time.Now(),
		send:       make(chan outbound, sendBuffer),
		codec:      codec,
	}
}

// enqueue 写入发送队列，队列已满时丢弃
func (c *Connection) enqueue(messageType int, data []byte) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- outbound{messageType: messageType, data: data}:
		return true
	default:
		log.Debug("发送队列已满，丢弃消息", "conn", c.ID)
		return false
	}
}

// close 关闭发送队列
func (c *Connection) close() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

// sendMessage 发送 JSON 消息
func (c *Connection) sendMessage(msgType string, payload interface{}) {
	msg := Message{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error("序列化消息失败", "type", msgType, "err", err)
			return
		}
		msg.Payload = data
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("序列化消息失败", "type", msgType, "err", err)
		return
	}
	c.enqueue(websocket.TextMessage, data)
}

// sendFrame 按连接的编码发送观测帧
func (c *Connection) sendFrame(frame *protocol.ObservationFrame) {
	data, err := c.codec.EncodeObservation(frame)
	if err != nil {
		log.Error("编码观测帧失败", "codec", c.codec.Name(), "err", err)
		return
	}
	if c.codec.Binary() {
		c.enqueue(websocket.BinaryMessage, data)
		return
	}
	msg, err := json.Marshal(Message{Type: "observation", Payload: data})
	if err != nil {
		log.Error("序列化消息失败", "err", err)
		return
	}
	c.enqueue(websocket.TextMessage, msg)
}

// sendError 发送错误消息
func (c *Connection) sendError(message, code string) {
	c.sendMessage("error", protocol.CreateErrorResponse(message, code))
}

// handleWSConnection 处理WebSocket连接
func (s *GameServer) handleWSConnection(w http.ResponseWriter, r *http.Request) {
	if s.ConnectionCount() >= s.config.Server.MaxConnections {
		http.Error(w, "连接数已达上限", http.StatusServiceUnavailable)
		return
	}

	// 验证认证信息
	agentID, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "未授权", http.StatusUnauthorized)
		return
	}

	codec, err := protocol.CodecFor(r.URL.Query().Get("encoding"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 升级HTTP连接为WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket升级失败", "err", err)
		return
	}

	c := newConnection(agentID, codec)

	s.connMutex.Lock()
	s.connections[c.ID] = c
	s.connMutex.Unlock()

	log.Info("智能体已连接", "agent", agentID, "conn", c.ID, "encoding", codec.Name())

	// 启动读写协程
	go s.readPump(conn, c)
	go s.writePump(conn, c)
}

// authenticate 未配置密钥时使用 agent_id 参数
func (s *GameServer) authenticate(r *http.Request) (string, error) {
	if !s.auth.Enabled() {
		if id := r.URL.Query().Get("agent_id"); id != "" {
			return id, nil
		}
		return "anonymous", nil
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return "", ErrInvalidToken
	}
	return s.auth.ValidateToken(token)
}

// readPump 从WebSocket读取数据
func (s *GameServer) readPump(conn *websocket.Conn, c *Connection) {
	defer func() {
		s.closeConnection(c)
		conn.Close()
	}()

	// 设置读取参数
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("WebSocket错误", "conn", c.ID, "err", err)
			}
			break
		}

		c.LastActive = time.Now()
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType == websocket.BinaryMessage {
			s.handleBinaryAction(c, message)
			continue
		}
		s.handleMessage(c, message)
	}
}

// writePump 向WebSocket写入数据
func (s *GameServer) writePump(conn *websocket.Conn, c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(msg.messageType, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeConnection 关闭连接
func (s *GameServer) closeConnection(c *Connection) {
	s.connMutex.Lock()
	_, ok := s.connections[c.ID]
	delete(s.connections, c.ID)
	s.connMutex.Unlock()

	if !ok {
		return
	}

	// 如果在场地中，从场地移除
	if c.Arena != nil {
		c.Arena.RemoveClient(c.ID)
		c.Arena = nil
	}
	c.close()

	log.Info("智能体已断开连接", "agent", c.AgentID, "conn", c.ID)
}

// handleMessage 处理接收到的文本消息
func (s *GameServer) handleMessage(c *Connection, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug("解析消息失败", "err", err)
		c.sendError("消息格式错误", "BAD_MESSAGE")
		return
	}

	switch msg.Type {
	case "join_arena":
		s.handleJoinArena(c, msg.Payload)
	case "leave_arena":
		s.handleLeaveArena(c)
	case "reset":
		c.sendFrame(s.ensureArena(c).Reset())
	case "step":
		frame, err := protocol.JSONCodec{}.DecodeAction(msg.Payload)
		if err != nil {
			c.sendError("动作格式错误", "BAD_ACTION")
			return
		}
		s.handleStep(c, frame)
	case "keys":
		s.handleKeys(c, msg.Payload)
	case "observe":
		c.sendFrame(s.ensureArena(c).Observe())
	default:
		log.Debug("未知消息类型", "type", msg.Type)
		c.sendError("未知消息类型: "+msg.Type, "UNKNOWN_TYPE")
	}
}

// handleBinaryAction 处理二进制动作帧
func (s *GameServer) handleBinaryAction(c *Connection, data []byte) {
	frame, err := c.codec.DecodeAction(data)
	if err != nil {
		log.Debug("解析动作帧失败", "conn", c.ID, "err", err)
		c.sendError("动作帧格式错误", "BAD_ACTION")
		return
	}
	s.handleStep(c, frame)
}

// handleStep 推进一步并回复观测帧
func (s *GameServer) handleStep(c *Connection, frame *protocol.ActionFrame) {
	arena := s.ensureArena(c)
	obs, err := arena.Step(protocol.ConvertFrameToAction(frame))
	if err != nil {
		c.sendError("当前场地不接受动作", "WRONG_MODE")
		return
	}
	c.sendFrame(obs)
}

// handleJoinArena 处理加入场地请求
func (s *GameServer) handleJoinArena(c *Connection, payload json.RawMessage) {
	var req JoinArenaRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			c.sendError("请求格式错误", "BAD_REQUEST")
			return
		}
	}

	var arena *Arena
	if req.ArenaID != "" {
		a, ok := s.GetArena(req.ArenaID)
		if !ok {
			c.sendError(ErrArenaNotFound.Error(), "ARENA_NOT_FOUND")
			return
		}
		arena = a
	} else {
		mode := req.Mode
		if mode == "" {
			mode = models.ModeTrain
		}
		a, err := s.CreateArena(mode)
		if err != nil {
			code := "CREATE_FAILED"
			if errors.Is(err, ErrArenaFull) {
				code = "ARENA_FULL"
			}
			c.sendError(err.Error(), code)
			return
		}
		arena = a
	}

	s.joinArena(c, arena)
	c.sendMessage("arena_joined", arena.Info())
	c.sendFrame(arena.Observe())
}

// handleLeaveArena 处理离开场地请求
func (s *GameServer) handleLeaveArena(c *Connection) {
	if c.Arena != nil {
		c.Arena.RemoveClient(c.ID)
		c.Arena = nil
		c.sendMessage("leave_arena_confirm", nil)
	}
}

// handleKeys 处理键盘状态
func (s *GameServer) handleKeys(c *Connection, payload json.RawMessage) {
	var req KeysRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError("请求格式错误", "BAD_REQUEST")
		return
	}
	if c.Arena == nil {
		c.sendError("尚未加入场地", "NOT_IN_ARENA")
		return
	}
	if err := c.Arena.SetKeys(req.Pressed); err != nil {
		c.sendError("当前场地不接受键盘输入", "WRONG_MODE")
	}
}

// ensureArena 未加入场地时自动创建训练场地
func (s *GameServer) ensureArena(c *Connection) *Arena {
	if c.Arena != nil {
		return c.Arena
	}
	arena, err := s.CreateArena(models.ModeTrain)
	if err != nil {
		// 场地数已满时使用临时场地，不计入管理
		log.Warn("创建场地失败，使用临时场地", "err", err)
		arena = NewArena(s.config, models.ModeTrain, s.recorder, s.policy)
	}
	s.joinArena(c, arena)
	return arena
}

func (s *GameServer) joinArena(c *Connection, arena *Arena) {
	if c.Arena != nil && c.Arena != arena {
		c.Arena.RemoveClient(c.ID)
	}
	arena.AddClient(c)
	c.Arena = arena
}
