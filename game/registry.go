package game

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultGracePeriod 空房延迟回收时长，吸收刷新页面等快速重连
const DefaultGracePeriod = 5 * time.Second

// RegistryConfig 注册表配置
type RegistryConfig struct {
	Room        RoomConfig
	GracePeriod time.Duration // 0 表示立即回收
}

// Registry 管理所有房间的生命周期：roomID -> Room
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	pending map[string]*removal

	cfg     RegistryConfig
	metrics *Metrics
	log     *zap.SugaredLogger
}

// removal 一次待执行的延迟回收
type removal struct {
	timer *time.Timer
}

// NewRegistry 创建房间注册表
func NewRegistry(cfg RegistryConfig, log *zap.SugaredLogger, metrics *Metrics) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		pending: make(map[string]*removal),
		cfg:     cfg,
		metrics: metrics,
		log:     log,
	}
}

// Metrics 注册表与房间共享的计数器
func (g *Registry) Metrics() *Metrics { return g.metrics }

// CreateRoom 幂等创建。已存在时返回原房间与 false（记录日志，不是错误）。
func (g *Registry) CreateRoom(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[id]; ok {
		g.log.Infow("room already exists", "room", id)
		return r, false
	}
	r := NewRoom(id, g.cfg.Room, g.log, g.metrics)
	g.rooms[id] = r
	g.metrics.IncRoomsCreated()
	g.log.Infow("room created", "room", id)
	return r, true
}

// GetRoom 查找房间
func (g *Registry) GetRoom(id string) (*Room, error) {
	g.mu.RLock()
	r, ok := g.rooms[id]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return r, nil
}

// RemoveRoomIfEmpty 仅当调用时房间没有玩家才删除
func (g *Registry) RemoveRoomIfEmpty(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[id]
	if !ok || !r.closeIfEmpty() {
		return false
	}
	delete(g.rooms, id)
	if p, ok := g.pending[id]; ok {
		p.timer.Stop()
		delete(g.pending, id)
	}
	g.metrics.IncRoomsRemoved()
	g.log.Infow("room removed", "room", id)
	return true
}

// ScheduleRemoval 宽限期后再次确认为空才删除；期间有人重新加入则房间保留
func (g *Registry) ScheduleRemoval(id string) {
	if g.cfg.GracePeriod <= 0 {
		g.RemoveRoomIfEmpty(id)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[id]; !ok {
		return
	}
	if old, ok := g.pending[id]; ok {
		old.timer.Stop()
	}
	p := &removal{}
	p.timer = time.AfterFunc(g.cfg.GracePeriod, func() {
		g.mu.Lock()
		current := g.pending[id] == p
		if current {
			delete(g.pending, id)
		}
		g.mu.Unlock()
		if current {
			g.RemoveRoomIfEmpty(id)
		}
	})
	g.pending[id] = p
	g.log.Debugw("room removal scheduled", "room", id, "after", g.cfg.GracePeriod)
}

// Len 当前房间数
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Rooms 所有房间摘要，按 ID 排序
func (g *Registry) Rooms() []RoomSummary {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Snapshot())
	}
	slices.SortFunc(out, func(a, b RoomSummary) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Close 停止所有延迟回收与倒计时（进程退出时调用）
func (g *Registry) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, p := range g.pending {
		p.timer.Stop()
		delete(g.pending, id)
	}
	for _, r := range g.rooms {
		r.Close()
	}
	g.log.Infow("registry closed", "rooms", len(g.rooms))
}
