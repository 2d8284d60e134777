// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

// WebSocketClient 表示一个订阅修订进度的 WebSocket 客户端连接
type WebSocketClient struct {
	conn      WebSocketConnection
	taskID    string
	send      chan []byte
	closed    int32     // 原子操作标志，0=开启，1=关闭
	lastPing  time.Time // 最后一次ping时间
	createdAt time.Time // 创建时间
}

// WebSocketManager 管理所有 WebSocket 连接，按修订任务ID分组
type WebSocketManager struct {
	connections   map[string]map[WebSocketConnection]*WebSocketClient // taskID -> connections
	register      chan *WebSocketClient
	unregister    chan *WebSocketClient
	cleanup       chan bool
	mutex         sync.RWMutex
	pingTimeout   time.Duration
	cleanupTicker *time.Ticker
}

// 全局 WebSocket 管理器
var wsManager = &WebSocketManager{
	connections: make(map[string]map[WebSocketConnection]*WebSocketClient),
	register:    make(chan *WebSocketClient, 256),
	unregister:  make(chan *WebSocketClient, 256),
	cleanup:     make(chan bool, 1),
	pingTimeout: 60 * time.Second,
}

// WebSocketConnection 定义 WebSocket 连接的接口
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketConnWrapper 包装真实的 websocket.Conn 以实现接口
type WebSocketConnWrapper struct {
	*websocket.Conn
}

// -----------------------------------------
// 初始化 WebSocket 管理器
func init() {
	go wsManager.run()
}

// ========================================
// WebSocketClient 方法
// ========================================

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		// 只设置关闭标志，不关闭通道
		// 通道由写循环的 defer 函数负责关闭
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后ping时间
func (client *WebSocketClient) UpdatePing() {
	client.lastPing = time.Now()
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}

	return time.Since(client.lastPing) > timeout
}

// SendMessage 安全发送消息到客户端
func (client *WebSocketClient) SendMessage(message map[string]interface{}) error {
	if client.IsClosed() {
		return nil
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	// 双重检查，避免竞态条件
	if client.IsClosed() {
		return nil
	}

	select {
	case client.send <- msgBytes:
		return nil
	default:
		// 队列满，记录警告但不阻塞
		log.Printf("⚠️ 任务 %s 的客户端消息队列已满，消息被丢弃", client.taskID)
		return nil
	}
}

// ========================================
// WebSocketManager 方法
// ========================================

// run 运行 WebSocket 管理器主循环
func (manager *WebSocketManager) run() {
	// 启动定期清理
	manager.cleanupTicker = time.NewTicker(30 * time.Second)
	defer manager.cleanupTicker.Stop()

	for {
		select {
		case client := <-manager.register:
			manager.registerClient(client)

		case client := <-manager.unregister:
			manager.unregisterClient(client)

		case <-manager.cleanupTicker.C:
			manager.cleanupExpiredConnections()

		case <-manager.cleanup:
			manager.shutdown()
			return
		}
	}
}

// registerClient 注册新客户端
func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	if client == nil {
		log.Printf("⚠️ 尝试注册 nil 客户端，忽略")
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.taskID] == nil {
		manager.connections[client.taskID] = make(map[WebSocketConnection]*WebSocketClient)
	}

	manager.connections[client.taskID][client.conn] = client
	client.UpdatePing()

	log.Printf("✅ WebSocket 客户端已订阅任务 %s 的进度", client.taskID)
}

// unregisterClient 安全注销客户端
func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	if client == nil {
		log.Printf("⚠️ 尝试注销 nil 客户端，忽略")
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if connections, exists := manager.connections[client.taskID]; exists {
		delete(connections, client.conn)

		// 如果任务没有订阅者了，清理任务条目
		if len(connections) == 0 {
			delete(manager.connections, client.taskID)
		}
	}

	if !client.IsClosed() {
		client.Close()
	}

	log.Printf("🔌 WebSocket 客户端已断开连接 (任务: %s)", client.taskID)
}

// cleanupExpiredConnections 清理过期和死连接
func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for taskID, connections := range manager.connections {
		for conn, client := range connections {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(connections, conn)
				if !client.IsClosed() {
					client.Close()
				}
			}
		}
		if len(connections) == 0 {
			delete(manager.connections, taskID)
		}
	}
}

// processBatch 处理批量消息发送
func (manager *WebSocketManager) processBatch(clients []*WebSocketClient, message []byte) {
	failedCount := 0
	for _, client := range clients {
		if client.IsClosed() {
			continue
		}

		select {
		case client.send <- message:
			// 消息发送成功
		default:
			// 队列满，限制失败处理数量
			failedCount++
			if failedCount <= 5 { // 每批次最多处理5个失败连接
				go func(c *WebSocketClient) {
					c.Close()
					select {
					case manager.unregister <- c:
					case <-time.After(50 * time.Millisecond):
						// 超时放弃
					}
				}(client)
			} else {
				// 直接关闭，不进入unregister队列
				client.Close()
			}
		}
	}
}

// shutdown 优雅关闭管理器
func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	log.Println("🛑 正在关闭 WebSocket 管理器...")

	for _, connections := range manager.connections {
		for _, client := range connections {
			client.Close()
		}
	}

	manager.connections = make(map[string]map[WebSocketConnection]*WebSocketClient)

	log.Println("✅ WebSocket 管理器已关闭")
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	tasks := make(map[string]interface{})
	totalConnections := 0

	for taskID, connections := range manager.connections {
		activeConnections := 0
		clients := make([]interface{}, 0)

		for _, client := range connections {
			if client != nil && !client.IsClosed() {
				activeConnections++
				clients = append(clients, map[string]interface{}{
					"task_id":      client.taskID,
					"connected_at": client.createdAt.Format(time.RFC3339),
					"last_ping":    client.lastPing.Format(time.RFC3339),
				})
			}
		}

		tasks[taskID] = map[string]interface{}{
			"client_count": activeConnections,
			"clients":      clients,
		}
		totalConnections += activeConnections
	}

	return map[string]interface{}{
		"total_tasks":       len(manager.connections),
		"total_connections": totalConnections,
		"tasks":             tasks,
	}
}

// BroadcastToTask 向订阅指定任务的客户端广播消息
func (manager *WebSocketManager) BroadcastToTask(taskID string, message map[string]interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ 序列化广播消息失败: %v", err)
		return
	}

	manager.mutex.RLock()
	connections, exists := manager.connections[taskID]
	if !exists {
		manager.mutex.RUnlock()
		return
	}

	clientConnections := make([]*WebSocketClient, 0, len(connections))
	for _, client := range connections {
		if !client.IsClosed() {
			clientConnections = append(clientConnections, client)
		}
	}
	manager.mutex.RUnlock()

	if len(clientConnections) > 0 {
		manager.processBatch(clientConnections, msgBytes)
	}
}

// notifyProgressDone 修订结束时向订阅者推送终态消息
func notifyProgressDone(taskID, status string, result *models.RevisionResult) {
	message := map[string]interface{}{
		"type":      "revision_done",
		"task_id":   taskID,
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if result != nil {
		message["result"] = result
	}

	wsManager.BroadcastToTask(taskID, message)
}

// ========================================
// Handler 的 WebSocket 端点
// ========================================

// ProgressWebSocket 订阅修订任务的进度更新
func (h *Handler) ProgressWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		h.Response.BadRequest(c, "任务ID不能为空")
		return
	}

	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		h.Response.NotFound(c, "任务", "任务 "+taskID+" 不存在或已被清理")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket 升级失败: %v", err)
		return
	}

	client := &WebSocketClient{
		conn:      &WebSocketConnWrapper{Conn: conn},
		taskID:    taskID,
		send:      make(chan []byte, 64),
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}

	wsManager.register <- client

	go client.writeLoop()
	go client.readLoop()
	go client.forwardProgress(tracker)
}

// GetWebSocketStatus 获取 WebSocket 管理器状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, wsManager.GetStatus())
}

// writeLoop 把队列中的消息写到连接，并定期发送ping
func (client *WebSocketClient) writeLoop() {
	pingTicker := time.NewTicker(30 * time.Second)
	defer func() {
		pingTicker.Stop()
		client.Close()
		close(client.send)
	}()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-pingTicker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop 读取客户端消息以驱动pong处理和断开检测
func (client *WebSocketClient) readLoop() {
	defer func() {
		wsManager.unregister <- client
	}()

	client.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
		client.UpdatePing()
	}
}

// forwardProgress 订阅进度跟踪器并把更新转发到客户端
func (client *WebSocketClient) forwardProgress(tracker *services.ProgressTracker) {
	subscriber := tracker.Subscribe()
	defer tracker.Unsubscribe(subscriber)

	for {
		select {
		case update, ok := <-subscriber:
			if !ok {
				return
			}

			client.SendMessage(map[string]interface{}{
				"type":      "progress",
				"task_id":   client.taskID,
				"progress":  update.Progress,
				"message":   update.Message,
				"status":    update.Status,
				"timestamp": time.Now().Format(time.RFC3339),
			})

		case <-tracker.Done:
			return

		case <-time.After(wsManager.pingTimeout):
			if client.IsClosed() {
				return
			}
		}
	}
}
