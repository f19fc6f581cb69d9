package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"mazerush/game"
	"mazerush/maze"
)

// 入站消息类型
const (
	TypeCreateRoom         = "create-room"
	TypeJoinRoom           = "join-room"
	TypeLeaveRoom          = "leave-room"
	TypeCheckAvatar        = "check-avatar"
	TypeAvatarSelected     = "avatar-selected"
	TypeStartGame          = "start-game"
	TypeCoinCollected      = "coin-collected"
	TypePlayerFinished     = "player-finished"
	TypeProgressUpdate     = "progress-update"
	TypeFinalScore         = "final-score"
	TypePlayerMove         = "player-move"
	TypePlayerDisconnected = "player-disconnected"
	TypeSignal             = "signal"
	TypePing               = "ping"
)

// ErrMalformed 无法解析或缺少必填字段
var ErrMalformed = errors.New("malformed message")

// Envelope 入站消息的公共结构，按 type 决定哪些字段必填。
// 示例：{"type":"coin-collected","roomId":"R1","playerId":"A","coinPosition":{"x":3,"y":5}}
type Envelope struct {
	Type         string         `json:"type"`
	RoomID       string         `json:"roomId,omitempty"`
	PlayerID     game.PlayerID  `json:"playerId,omitempty"`
	Name         string         `json:"name,omitempty"`
	Avatar       string         `json:"avatar,omitempty"`
	CoinPosition *maze.Point    `json:"coinPosition,omitempty"`
	Position     *maze.Point    `json:"position,omitempty"`
	Progress     *game.Progress `json:"progress,omitempty"`
	Score        *int           `json:"score,omitempty"`

	// 信令：其余字段（offer/answer/candidate）原样转发，不解析
	Action   string        `json:"action,omitempty"`
	Sender   game.PlayerID `json:"sender,omitempty"`
	Receiver game.PlayerID `json:"receiver,omitempty"`
}

// Decode 解析一条文本帧
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// Validate 检查该类型的必填字段。未知类型不在这里处理。
func (e Envelope) Validate() error {
	var missing []string
	need := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}

	switch e.Type {
	case TypePing:
		return nil
	case TypeSignal:
		need(e.RoomID != "", "roomId")
		need(e.Receiver != "", "receiver")
	default:
		need(e.RoomID != "", "roomId")
	}

	switch e.Type {
	case TypeJoinRoom, TypeLeaveRoom, TypePlayerDisconnected, TypePlayerFinished:
		need(e.PlayerID != "", "playerId")
	case TypeCheckAvatar:
		need(e.Avatar != "", "avatar")
	case TypeAvatarSelected:
		need(e.PlayerID != "", "playerId")
		need(e.Avatar != "", "avatar")
	case TypeCoinCollected:
		need(e.PlayerID != "", "playerId")
		need(e.CoinPosition != nil, "coinPosition")
	case TypeProgressUpdate:
		need(e.PlayerID != "", "playerId")
		need(e.Progress != nil, "progress")
	case TypeFinalScore:
		need(e.PlayerID != "", "playerId")
		need(e.Score != nil, "score")
	case TypePlayerMove:
		need(e.PlayerID != "", "playerId")
		need(e.Position != nil, "position")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s missing %v", ErrMalformed, e.Type, missing)
	}
	return nil
}
