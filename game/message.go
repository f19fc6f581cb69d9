package game

import (
	"encoding/json"

	"mazerush/maze"
)

// 出站消息类型（与前端约定的字符串保持一致）
const (
	TypeError                = "error"
	TypePong                 = "pong"
	TypeRoomUpdate           = "room-update"
	TypePeerJoined           = "peer-joined"
	TypeAvatarStatus         = "avatar-status"
	TypeAvatarUpdate         = "avatar-update"
	TypeAvatarSelectionError = "avatar-selection-error"
	TypeCountdown            = "countdown"
	TypeStartGame            = "start-game"
	TypeUpdateCoins          = "update-coins"
	TypeLeaderboard          = "leaderboard"
	TypeProgressUpdate       = "progress-update"
	TypeFinalScores          = "final-scores"
	TypePlayerMove           = "player-move"
	TypePlayerDisconnected   = "player-disconnected"
)

// RosterEntry 房间名单中的一名玩家
type RosterEntry struct {
	PlayerID PlayerID `json:"playerId"`
	Name     string   `json:"name"`
	Avatar   string   `json:"avatar,omitempty"`
}

// RoomUpdate 成员或阶段变化后的房间全量状态
type RoomUpdate struct {
	Type            string        `json:"type"`
	RoomID          string        `json:"roomId"`
	Phase           Phase         `json:"phase"`
	Players         []RosterEntry `json:"players"`
	SelectedAvatars []string      `json:"selectedAvatars"`
}

// PeerJoined 通知已在房间内的玩家有新成员，用于发起 WebRTC 连接
type PeerJoined struct {
	Type   string   `json:"type"`
	RoomID string   `json:"roomId"`
	PeerID PlayerID `json:"peerId"`
}

// AvatarStatus check-avatar 的回复，只发给请求者
type AvatarStatus struct {
	Type        string `json:"type"`
	AvatarID    string `json:"avatarId"`
	IsAvailable bool   `json:"isAvailable"`
}

// AvatarUpdate 头像占用变化
type AvatarUpdate struct {
	Type            string        `json:"type"`
	Players         []RosterEntry `json:"players"`
	SelectedAvatars []string      `json:"selectedAvatars"`
}

// AvatarSelectionError 选头像失败，只发给请求者
type AvatarSelectionError struct {
	Type    string `json:"type"`
	Avatar  string `json:"avatar"`
	Message string `json:"message"`
}

// Countdown 人数达标，进入倒计时
type Countdown struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Seconds int    `json:"seconds"`
}

// StartPosition 玩家出生点
type StartPosition struct {
	PlayerID PlayerID `json:"playerId"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
}

// StartGame 开局快照：完整网格、出口、金币与每位玩家的出生点
type StartGame struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId"`
	Maze      maze.Grid       `json:"maze"`
	Exit      maze.Point      `json:"exit"`
	Coins     []maze.Point    `json:"coins"`
	Positions []StartPosition `json:"positions"`
	Seed      uint64          `json:"seed,string"`
}

// CoinUpdate 金币被拾取后的剩余金币与拾取者分数
type CoinUpdate struct {
	Type         string       `json:"type"`
	PlayerID     PlayerID     `json:"playerId"`
	CoinPosition maze.Point   `json:"coinPosition"`
	Coins        []maze.Point `json:"coins"`
	Score        int          `json:"score"`
}

// LeaderboardEntry 排行榜中的一行
type LeaderboardEntry struct {
	PlayerID PlayerID `json:"playerId"`
	Name     string   `json:"name"`
	Score    int      `json:"score"`
	Position int      `json:"position,omitempty"` // 到达出口的名次，未完成为空
}

// Leaderboard 排行榜，IsFinal 为 true 时对局结束
type Leaderboard struct {
	Type        string             `json:"type"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	IsFinal     bool               `json:"isFinal"`
}

// ProgressUpdate 进度回显
type ProgressUpdate struct {
	Type     string   `json:"type"`
	PlayerID PlayerID `json:"playerId"`
	Progress Progress `json:"progress"`
}

// FinalScores 客户端自报分数汇总
type FinalScores struct {
	Type   string             `json:"type"`
	Scores []LeaderboardEntry `json:"scores"`
}

// PlayerMove 位置转发
type PlayerMove struct {
	Type     string     `json:"type"`
	PlayerID PlayerID   `json:"playerId"`
	Position maze.Point `json:"position"`
}

// PlayerDisconnected 玩家离开房间
type PlayerDisconnected struct {
	Type     string   `json:"type"`
	PlayerID PlayerID `json:"playerId"`
}

// ErrorMessage 错误回复
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Encode 序列化出站消息；这些类型都是纯数据，失败只可能来自编程错误
func Encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(ErrorMessage{Type: TypeError, Message: "internal encoding error"})
	}
	return b
}
