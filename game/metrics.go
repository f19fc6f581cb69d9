package game

import (
	"sync/atomic"
)

// Metrics 协调器运行期的关键计数（用于监控与调试），所有房间共享一份
type Metrics struct {
	RoomsCreated      int64 // 创建的房间数
	RoomsRemoved      int64 // 因空房被回收的房间数
	Joins             int64 // 成功加入（含重连）
	Leaves            int64 // 离开或断线
	AvatarConflicts   int64 // 头像被占用而拒绝的请求
	GamesStarted      int64 // 开局次数
	CoinsCollected    int64 // 被确认拾取的金币
	Finishes          int64 // 到达出口的记录数
	MalformedMessages int64 // 无法解析或缺字段的入站消息
	UnknownMessages   int64 // 未知类型的入站消息
	SignalsRelayed    int64 // 成功转发的信令
	SignalsDropped    int64 // 接收方不在线而丢弃的信令
	SendsDropped      int64 // 因发送队列满被丢弃的出站消息
}

func (m *Metrics) IncRoomsCreated()      { atomic.AddInt64(&m.RoomsCreated, 1) }
func (m *Metrics) IncRoomsRemoved()      { atomic.AddInt64(&m.RoomsRemoved, 1) }
func (m *Metrics) IncJoins()             { atomic.AddInt64(&m.Joins, 1) }
func (m *Metrics) IncLeaves()            { atomic.AddInt64(&m.Leaves, 1) }
func (m *Metrics) IncAvatarConflicts()   { atomic.AddInt64(&m.AvatarConflicts, 1) }
func (m *Metrics) IncGamesStarted()      { atomic.AddInt64(&m.GamesStarted, 1) }
func (m *Metrics) IncCoinsCollected()    { atomic.AddInt64(&m.CoinsCollected, 1) }
func (m *Metrics) IncFinishes()          { atomic.AddInt64(&m.Finishes, 1) }
func (m *Metrics) IncMalformedMessages() { atomic.AddInt64(&m.MalformedMessages, 1) }
func (m *Metrics) IncUnknownMessages()   { atomic.AddInt64(&m.UnknownMessages, 1) }
func (m *Metrics) IncSignalsRelayed()    { atomic.AddInt64(&m.SignalsRelayed, 1) }
func (m *Metrics) IncSignalsDropped()    { atomic.AddInt64(&m.SignalsDropped, 1) }
func (m *Metrics) IncSendsDropped()      { atomic.AddInt64(&m.SendsDropped, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"rooms_created":      atomic.LoadInt64(&m.RoomsCreated),
		"rooms_removed":      atomic.LoadInt64(&m.RoomsRemoved),
		"joins":              atomic.LoadInt64(&m.Joins),
		"leaves":             atomic.LoadInt64(&m.Leaves),
		"avatar_conflicts":   atomic.LoadInt64(&m.AvatarConflicts),
		"games_started":      atomic.LoadInt64(&m.GamesStarted),
		"coins_collected":    atomic.LoadInt64(&m.CoinsCollected),
		"finishes":           atomic.LoadInt64(&m.Finishes),
		"malformed_messages": atomic.LoadInt64(&m.MalformedMessages),
		"unknown_messages":   atomic.LoadInt64(&m.UnknownMessages),
		"signals_relayed":    atomic.LoadInt64(&m.SignalsRelayed),
		"signals_dropped":    atomic.LoadInt64(&m.SignalsDropped),
		"sends_dropped":      atomic.LoadInt64(&m.SendsDropped),
	}
}
