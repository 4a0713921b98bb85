package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-server/internal/models"
)

func newTestServer(t *testing.T, m *Manager) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		if uid := c.Query("as"); uid != "" {
			c.Set(models.CtxKeyUserID, uid)
		}
		c.Next()
	}, m.Handler())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?as=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestManager_SendToUserReachesOnlyOwner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(nil, zap.NewNop())
	go m.Run(ctx)
	srv := newTestServer(t, m)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	require.Eventually(t, func() bool { return m.ConnectedClients() == 2 }, time.Second, 10*time.Millisecond)

	m.SendToUser("alice", "story_update", TopicStories, map[string]string{"story_id": "s-1", "status": "completed"})

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := alice.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    string            `json:"type"`
		Topic   string            `json:"topic"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "story_update", msg.Type)
	assert.Equal(t, TopicStories, msg.Topic)
	assert.Equal(t, "s-1", msg.Payload["story_id"])

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's update")
}

func TestManager_UnsubscribedTopicIsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(nil, zap.NewNop())
	go m.Run(ctx)
	srv := newTestServer(t, m)

	conn := dial(t, srv, "alice")
	require.Eventually(t, func() bool { return m.ConnectedClients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "unsubscribe", "topic": TopicTasks}))
	// Подписка обрабатывается асинхронно
	time.Sleep(50 * time.Millisecond)

	m.SendToUser("alice", "task_update", TopicTasks, "ignored")
	m.SendToUser("alice", "story_update", TopicStories, "kept")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
}

func TestHandler_RequiresUser(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	srv := newTestServer(t, m)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestManager_DisconnectOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(nil, zap.NewNop())
	go m.Run(ctx)
	srv := newTestServer(t, m)

	conn := dial(t, srv, "alice")
	require.Eventually(t, func() bool { return m.ConnectedClients() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, m.ConnectedClients())

	// после остановки отправка не блокирует
	m.SendToUser("alice", "story_update", TopicStories, nil)
}
