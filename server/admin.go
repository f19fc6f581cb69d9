package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleMetrics 输出协调器运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"rooms":       s.registry.Len(),
		"connections": s.Connections(),
		"metrics":     s.metrics.Snapshot(),
	}
	s.jsonResponse(w, payload, http.StatusOK)
}

// HandleRooms 房间摘要
// GET /admin/rooms          全部房间
// GET /admin/rooms?room=R1  单个房间
func (s *Server) HandleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("room")
	if id == "" {
		s.jsonResponse(w, s.registry.Rooms(), http.StatusOK)
		return
	}
	room, err := s.registry.GetRoom(id)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	s.jsonResponse(w, room.Snapshot(), http.StatusOK)
}

// HandleAdminConfig 只读输出生效配置
// GET /admin/config
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.jsonResponse(w, s.opts.Settings, http.StatusOK)
}

func (s *Server) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorw("encode json failed", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]any{"error": message}, status)
}

// loggerMiddleware 记录请求耗时与状态码
func (s *Server) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(ww, r)

		s.log.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢复
func (s *Server) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Errorw("panic while handling request",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)
				s.errorResponse(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// responseWriter 包装 ResponseWriter 以获取状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
