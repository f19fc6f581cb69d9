package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mazerush/game"
)

// Options 传输层参数
type Options struct {
	SendBuffer int    // 每个连接的发送队列长度
	WebDir     string // 静态资源目录，为空则不挂载
	Settings   any    // /admin/config 输出的生效配置
}

// Server WebSocket 协议入口与管理接口，持有注册表的引用
type Server struct {
	registry *game.Registry
	metrics  *game.Metrics
	log      *zap.SugaredLogger
	opts     Options
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*ClientConn]struct{}
	closed bool
}

func New(registry *game.Registry, log *zap.SugaredLogger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	return &Server{
		registry: registry,
		metrics:  registry.Metrics(),
		log:      log,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 演示环境：允许所有来源（生产环境需严格限制）
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*ClientConn]struct{}),
	}
}

// Routes 注册全部 HTTP 路由
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)

	wrap := func(h http.HandlerFunc) http.HandlerFunc { return s.recoverer(s.loggerMiddleware(h)) }
	mux.HandleFunc("/metrics", wrap(s.HandleMetrics))
	mux.HandleFunc("/admin/rooms", wrap(s.HandleRooms))
	mux.HandleFunc("/admin/config", wrap(s.HandleAdminConfig))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if s.opts.WebDir != "" {
		// 前后端分离：将 / 映射到 web 目录的静态资源
		mux.Handle("/", http.FileServer(http.Dir(s.opts.WebDir)))
	}
	return mux
}

// Close 关闭所有连接；之后的升级请求会被立即关闭
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*ClientConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	s.log.Infow("websocket connections closed", "count", len(conns))
}

// Connections 当前连接数
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(c *ClientConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *ClientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}
