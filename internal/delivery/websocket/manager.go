package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"story-server/internal/models"
)

// Темы, на которые клиент подписан при подключении.
const (
	TopicStories = "stories"
	TopicTasks   = "tasks"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Manager управляет WebSocket-соединениями пользователей.
type Manager struct {
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	outbound   chan Message
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// Client представляет WebSocket-клиента
type Client struct {
	ID      uuid.UUID
	UserID  string
	conn    *websocket.Conn
	manager *Manager
	send    chan []byte

	topicsMu sync.RWMutex
	topics   map[string]bool
}

// Message представляет сообщение для отправки через WebSocket
type Message struct {
	Type    string      `json:"type"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
	Target  string      `json:"-"`
}

// NewManager создает новый Manager. allowedOrigins пустой - разрешены все источники.
func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Manager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan Message, sendBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins["*"] || origins[origin]
			},
		},
		logger: logger.Named("WebSocketManager"),
	}
}

// Run обрабатывает регистрацию клиентов и доставку сообщений до отмены ctx.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for id, client := range m.clients {
				close(client.send)
				delete(m.clients, id)
			}
			m.mu.Unlock()
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()
			m.logger.Debug("Client connected", zap.String("client_id", client.ID.String()), zap.String("user_id", client.UserID))

		case client := <-m.unregister:
			m.removeClient(client.ID)

		case message := <-m.outbound:
			m.deliver(message)
		}
	}
}

func (m *Manager) removeClient(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if client, ok := m.clients[id]; ok {
		close(client.send)
		delete(m.clients, id)
		m.logger.Debug("Client disconnected", zap.String("client_id", id.String()))
	}
}

// deliver отправляет сообщение адресату; клиенты с переполненным буфером отключаются.
func (m *Manager) deliver(message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		m.logger.Error("Failed to marshal message", zap.String("type", message.Type), zap.Error(err))
		return
	}

	var slow []uuid.UUID
	m.mu.RLock()
	for id, client := range m.clients {
		if client.UserID != message.Target {
			continue
		}
		if !client.IsSubscribed(message.Topic) {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range slow {
		m.logger.Warn("Dropping slow client", zap.String("client_id", id.String()))
		m.removeClient(id)
	}
}

// SendToUser ставит сообщение в очередь для всех соединений пользователя.
// Не блокирует вызывающего: при переполнении очереди сообщение отбрасывается.
func (m *Manager) SendToUser(userID, messageType, topic string, payload interface{}) {
	m.enqueue(Message{Type: messageType, Topic: topic, Payload: payload, Target: userID})
}

func (m *Manager) enqueue(msg Message) {
	select {
	case <-m.done:
	case m.outbound <- msg:
	default:
		m.logger.Warn("Outbound queue full, message dropped", zap.String("type", msg.Type), zap.String("target", msg.Target))
	}
}

// ConnectedClients возвращает число активных соединений.
func (m *Manager) ConnectedClients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Handler апгрейдит соединение аутентифицированного пользователя.
// user_id берется из контекста, установленного auth middleware.
func (m *Manager) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(models.CtxKeyUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeUnauthorized,
				Message: models.ErrTokenMissing.Error(),
			})
			return
		}

		conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			m.logger.Warn("Upgrade failed", zap.String("user_id", userID), zap.Error(err))
			return
		}

		client := &Client{
			ID:      uuid.New(),
			UserID:  userID,
			conn:    conn,
			manager: m,
			send:    make(chan []byte, sendBuffer),
			topics:  map[string]bool{TopicStories: true, TopicTasks: true},
		}

		select {
		case m.register <- client:
		case <-m.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump обрабатывает команды подписки от клиента
func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.logger.Debug("Read error", zap.String("client_id", c.ID.String()), zap.Error(err))
			}
			return
		}

		var cmd struct {
			Action string `json:"action"`
			Topic  string `json:"topic"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}
		switch cmd.Action {
		case "subscribe":
			c.Subscribe(cmd.Topic)
		case "unsubscribe":
			c.Unsubscribe(cmd.Topic)
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Subscribe подписывает клиента на тему
func (c *Client) Subscribe(topic string) {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	c.topics[topic] = true
}

// Unsubscribe отписывает клиента от темы
func (c *Client) Unsubscribe(topic string) {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	delete(c.topics, topic)
}

// IsSubscribed проверяет, подписан ли клиент на тему
func (c *Client) IsSubscribed(topic string) bool {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()
	return c.topics[topic]
}
