package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mazerush/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // 必须小于 pongWait
	maxMessageSize = 1 << 20          // 1MB
)

// ClientConn 一条 WebSocket 连接：读协程处理入站，写协程独占写出
type ClientConn struct {
	ID string

	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	metrics *game.Metrics
	log     *zap.SugaredLogger
}

func NewClientConn(ws *websocket.Conn, buffer int, metrics *game.Metrics, log *zap.SugaredLogger) *ClientConn {
	id := uuid.NewString()
	return &ClientConn{
		ID:      id,
		ws:      ws,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		metrics: metrics,
		log:     log.With("conn", id),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		// 慢连接不能拖住房间
		c.metrics.IncSendsDropped()
		c.log.Warnw("send queue full, message dropped", "size", len(b))
	}
}

// Close 通知写协程发送关闭帧并退出，可重复调用
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定时 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debugw("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush 尽量把已入队的消息写完
func (c *ClientConn) flush() {
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump 按顺序读取文本帧交给 handle，连接断开时返回
func (c *ClientConn) readPump(handle func([]byte)) {
	defer c.ws.Close()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Infow("read error", "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		// 任何入站数据都视为存活
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		handle(payload)
	}
}

// HandleWS WebSocket 接入。房间与玩家由后续的 create-room / join-room 消息决定。
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("upgrade error", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := NewClientConn(ws, s.opts.SendBuffer, s.metrics, s.log)
	if !s.track(client) {
		client.Close()
		go client.writePump()
		return
	}
	sess := newSession(s, client)
	client.log.Debugw("connection opened", "remote", r.RemoteAddr)

	go client.writePump()
	go func() {
		defer func() {
			sess.close()
			client.Close()
			s.untrack(client)
			client.log.Debugw("connection closed")
		}()
		client.readPump(sess.handle)
	}()
}
