package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solwire/solwire/internal/metrics"
	"github.com/solwire/solwire/internal/ops/operr"
	"github.com/solwire/solwire/pkg/logger"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsEnvelope is the inbound message frame.
type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wsRequest is the payload of a "mcp" frame.
type wsRequest struct {
	RequestID  string         `json:"requestId"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}

// wsConn serializes writes to a single peer. Handlers run in their own
// goroutines, so concurrent responses must not interleave frames.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  *logger.Logger
}

func (c *wsConn) send(payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteJSON(payload); err != nil {
		c.log.Err(err).Debug("websocket write failed")
	}
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Err(err).Warn("websocket upgrade failed")
		return
	}

	metrics.WSSessionOpened()
	defer metrics.WSSessionClosed()
	defer sock.Close()

	c := &wsConn{conn: sock, log: s.log}
	c.send(map[string]string{
		"type":    "connection",
		"message": "Connected to " + s.cfg.ServerName,
	})

	_ = sock.SetReadDeadline(time.Now().Add(wsPongTimeout))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Err(err).Debug("websocket closed")
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.send(map[string]string{"type": "error", "message": "Unknown message type"})
			continue
		}
		metrics.RecordWSMessage(env.Type)

		switch env.Type {
		case "subscribe":
			// Accepted and held; push notifications are not emitted yet.
		case "mcp":
			var req wsRequest
			if err := json.Unmarshal(env.Data, &req); err != nil || req.Action == "" {
				c.send(map[string]string{"type": "error", "message": "Unknown message type"})
				continue
			}
			go s.handleWSRequest(ctx, c, req)
		default:
			c.send(map[string]string{"type": "error", "message": "Unknown message type"})
		}
	}
}

func (s *Server) handleWSRequest(ctx context.Context, c *wsConn, req wsRequest) {
	result, err := s.registry.Execute(ctx, req.Action, req.Parameters)
	if err != nil {
		c.send(map[string]any{
			"type":      "error",
			"requestId": req.RequestID,
			"action":    req.Action,
			"code":      string(operr.KindOf(err)),
			"message":   err.Error(),
		})
		return
	}
	c.send(map[string]any{
		"type":      "response",
		"requestId": req.RequestID,
		"action":    req.Action,
		"data":      result,
	})
}
