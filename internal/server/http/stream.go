package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/logging"
)

// streamHub fans out Task snapshots to every websocket client subscribed to
// one task_id, mirroring the teacher's webui websocket server (one upgraded
// connection per session, JSON-encoded push messages). No pings are sent.
type streamHub struct {
	mu          sync.Mutex
	subscribers map[string]map[*websocket.Conn]struct{}
	logger      logging.Logger
	upgrader    websocket.Upgrader
}

func newStreamHub(logger logging.Logger) *streamHub {
	return &streamHub{
		subscribers: make(map[string]map[*websocket.Conn]struct{}),
		logger:      logging.OrNop(logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *streamHub) subscribe(taskID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[taskID] == nil {
		h.subscribers[taskID] = make(map[*websocket.Conn]struct{})
	}
	h.subscribers[taskID][conn] = struct{}{}
}

func (h *streamHub) unsubscribe(taskID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers[taskID], conn)
	if len(h.subscribers[taskID]) == 0 {
		delete(h.subscribers, taskID)
	}
}

func (h *streamHub) broadcast(t *task.Task) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.subscribers[t.TaskID]))
	for c := range h.subscribers[t.TaskID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(t); err != nil {
			h.logger.Warn("stream: write to subscriber of %s failed: %v", t.TaskID, err)
		}
	}
}

// handleStatusStream upgrades to a websocket and pushes the task's snapshot
// immediately, then again every time the tracker flushes (spec §9 stream
// consumer support; SPEC_FULL.md §4).
func (s *Server) handleStatusStream(c *gin.Context) {
	taskID := c.Param("task_id")
	t, err := s.store.Get(c.Request.Context(), taskID)
	if err != nil {
		s.writeStoreError(c, err)
		return
	}

	conn, err := s.hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("stream: upgrade failed for %s: %v", taskID, err)
		return
	}
	defer conn.Close()

	s.hub.subscribe(taskID, conn)
	defer s.hub.unsubscribe(taskID, conn)

	if err := conn.WriteJSON(t); err != nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
