package game

import (
	"time"

	"mazerush/maze"
)

// PlayerID 客户端自带的玩家标识，仅在房间内唯一
type PlayerID string

// Sender 玩家的发送能力：把一条完整消息放入该连接的发送队列。
// 实现必须非阻塞，慢连接不能拖住房间。
type Sender interface {
	Enqueue(b []byte)
}

// Progress 客户端上报的进度，只用于展示
type Progress struct {
	CoinsCollected       int     `json:"coinsCollected"`
	CompletionPercentage float64 `json:"completionPercentage"`
	TimeRemaining        int     `json:"timeRemaining"`
}

// Player 房间内的玩家，只归属于一个 Room
type Player struct {
	ID       PlayerID
	Name     string
	Avatar   string
	Progress Progress
	Position maze.Point
	JoinedAt time.Time

	sender Sender
}

func (p *Player) send(b []byte) {
	if p.sender != nil {
		p.sender.Enqueue(b)
	}
}

func (p *Player) rosterEntry() RosterEntry {
	return RosterEntry{PlayerID: p.ID, Name: p.Name, Avatar: p.Avatar}
}
