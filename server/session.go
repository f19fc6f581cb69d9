package server

import (
	"errors"

	"go.uber.org/zap"

	"mazerush/game"
)

// session 一条连接上的协议状态：加入的房间与玩家身份。
// 只在该连接的读协程中使用，无需加锁。
type session struct {
	srv  *Server
	conn *ClientConn
	log  *zap.SugaredLogger

	roomID   string
	playerID game.PlayerID
	created  map[string]struct{} // 由本连接创建的房间，断开时若仍为空则回收
	reserved map[reservation]struct{}
}

// reservation 本连接替某个玩家 id 占用的头像，断开时若该玩家仍未入房则释放
type reservation struct {
	roomID   string
	playerID game.PlayerID
}

type handlerFunc func(ss *session, env Envelope, raw []byte)

// handlers 入站类型 -> 处理函数，每种类型只对应一个房间操作
var handlers = map[string]handlerFunc{
	TypeCreateRoom:         (*session).createRoom,
	TypeJoinRoom:           (*session).joinRoom,
	TypeLeaveRoom:          (*session).leaveRoom,
	TypePlayerDisconnected: (*session).leaveRoom,
	TypeCheckAvatar:        (*session).checkAvatar,
	TypeAvatarSelected:     (*session).avatarSelected,
	TypeStartGame:          (*session).startGame,
	TypeCoinCollected:      (*session).coinCollected,
	TypePlayerFinished:     (*session).playerFinished,
	TypeProgressUpdate:     (*session).progressUpdate,
	TypeFinalScore:         (*session).finalScore,
	TypePlayerMove:         (*session).playerMove,
	TypeSignal:             (*session).signal,
	TypePing:               (*session).ping,
}

func newSession(s *Server, c *ClientConn) *session {
	return &session{
		srv:      s,
		conn:     c,
		log:      c.log,
		created:  make(map[string]struct{}),
		reserved: make(map[reservation]struct{}),
	}
}

// handle 处理一条入站消息。任何错误都只影响本条消息。
func (ss *session) handle(raw []byte) {
	env, err := Decode(raw)
	if err != nil {
		ss.srv.metrics.IncMalformedMessages()
		ss.log.Warnw("dropping malformed message", "error", err)
		return
	}
	h, ok := handlers[env.Type]
	if !ok {
		ss.srv.metrics.IncUnknownMessages()
		ss.log.Warnw("unknown message type", "type", env.Type)
		return
	}

	// 省略 roomId / playerId 时沿用本连接已加入的房间与身份
	if env.RoomID == "" && env.Type != TypeCreateRoom {
		env.RoomID = ss.roomID
	}
	if env.PlayerID == "" {
		env.PlayerID = ss.playerID
	}
	if err := env.Validate(); err != nil {
		ss.srv.metrics.IncMalformedMessages()
		ss.log.Warnw("dropping malformed message", "error", err)
		return
	}
	h(ss, env, raw)
}

// close 连接断开：等同于离开房间
func (ss *session) close() {
	ss.leave()
	for res := range ss.reserved {
		if r, err := ss.srv.registry.GetRoom(res.roomID); err == nil {
			r.ReleaseReservation(res.playerID)
		}
	}
	for id := range ss.created {
		if r, err := ss.srv.registry.GetRoom(id); err == nil && r.PlayerCount() == 0 {
			ss.srv.registry.ScheduleRemoval(id)
		}
	}
}

func (ss *session) leave() {
	if ss.roomID == "" {
		return
	}
	roomID, playerID := ss.roomID, ss.playerID
	ss.roomID, ss.playerID = "", ""

	room, err := ss.srv.registry.GetRoom(roomID)
	if err != nil {
		return
	}
	left, err := room.RemovePlayer(playerID, ss.conn)
	if err != nil {
		// 已被新连接接管或已离开
		ss.log.Debugw("leave ignored", "room", roomID, "player", playerID, "error", err)
		return
	}
	if left == 0 {
		ss.srv.registry.ScheduleRemoval(roomID)
	}
}

// room 查找房间，不存在时只回复请求者
func (ss *session) room(id string) (*game.Room, bool) {
	r, err := ss.srv.registry.GetRoom(id)
	if err != nil {
		ss.replyError("Room " + id + " not found.")
		ss.log.Infow("room not found", "room", id)
		return nil, false
	}
	return r, true
}

func (ss *session) reply(v any) {
	ss.conn.Enqueue(game.Encode(v))
}

func (ss *session) replyError(msg string) {
	ss.reply(game.ErrorMessage{Type: game.TypeError, Message: msg})
}

func (ss *session) createRoom(env Envelope, _ []byte) {
	ss.srv.registry.CreateRoom(env.RoomID)
	ss.created[env.RoomID] = struct{}{}
}

func (ss *session) joinRoom(env Envelope, _ []byte) {
	room, ok := ss.room(env.RoomID)
	if !ok {
		return
	}
	if ss.roomID != "" && (ss.roomID != env.RoomID || ss.playerID != env.PlayerID) {
		ss.leave()
	}
	if err := room.AddPlayer(env.PlayerID, env.Name, env.Avatar, ss.conn); err != nil {
		switch {
		case errors.Is(err, game.ErrRoomNotFound):
			ss.replyError("Room " + env.RoomID + " not found.")
		case errors.Is(err, game.ErrRoomFull):
			ss.replyError("Room is full.")
		case errors.Is(err, game.ErrGameInProgress):
			ss.replyError("Game already in progress.")
		default:
			ss.replyError(err.Error())
		}
		ss.log.Infow("join rejected", "room", env.RoomID, "player", env.PlayerID, "error", err)
		return
	}
	ss.roomID, ss.playerID = env.RoomID, env.PlayerID
}

func (ss *session) leaveRoom(env Envelope, _ []byte) {
	if env.RoomID != ss.roomID || env.PlayerID != ss.playerID {
		ss.log.Warnw("leave for foreign player ignored", "room", env.RoomID, "player", env.PlayerID)
		return
	}
	ss.leave()
}

func (ss *session) checkAvatar(env Envelope, _ []byte) {
	room, ok := ss.room(env.RoomID)
	if !ok {
		return
	}
	ss.reply(game.AvatarStatus{
		Type:        game.TypeAvatarStatus,
		AvatarID:    env.Avatar,
		IsAvailable: room.IsAvatarFree(env.Avatar),
	})
}

func (ss *session) avatarSelected(env Envelope, _ []byte) {
	room, ok := ss.room(env.RoomID)
	if !ok {
		return
	}
	err := room.ClaimAvatar(env.PlayerID, env.Avatar)
	switch {
	case err == nil:
		ss.reserved[reservation{roomID: env.RoomID, playerID: env.PlayerID}] = struct{}{}
	case errors.Is(err, game.ErrAvatarTaken):
		ss.reply(game.AvatarSelectionError{
			Type:    game.TypeAvatarSelectionError,
			Avatar:  env.Avatar,
			Message: "Avatar already selected by another player.",
		})
	default:
		ss.reply(game.AvatarSelectionError{
			Type:    game.TypeAvatarSelectionError,
			Avatar:  env.Avatar,
			Message: err.Error(),
		})
	}
}

func (ss *session) startGame(env Envelope, _ []byte) {
	room, ok := ss.room(env.RoomID)
	if !ok {
		return
	}
	err := room.Start()
	switch {
	case err == nil:
	case errors.Is(err, game.ErrAlreadyStarted):
		ss.log.Debugw("start ignored, already started", "room", env.RoomID)
	case errors.Is(err, game.ErrNotEnoughPlayers):
		ss.replyError("Not enough players to start the game.")
	default:
		ss.log.Errorw("start failed", "room", env.RoomID, "error", err)
		ss.replyError("Failed to start the game.")
	}
}

func (ss *session) coinCollected(env Envelope, _ []byte) {
	room, ok := ss.room(env.RoomID)
	if !ok {
		return
	}
	if _, err := room.CollectCoin(env.PlayerID, *env.CoinPosition); err != nil {
		ss.log.Debugw("coin ignored", "room", env.RoomID, "player", env.PlayerID, "error", err)
	}
}

func (ss *session) playerFinished(env Envelope, _ []byte) {
	room, ok := ss.room(env.RoomID)
	if !ok {
		return
	}
	if _, err := room.RecordFinish(env.PlayerID); err != nil {
		ss.log.Debugw("finish ignored", "room", env.RoomID, "player", env.PlayerID, "error", err)
	}
}

func (ss *session) progressUpdate(env Envelope, _ []byte) {
	room, ok := ss.room(env.RoomID)
	if !ok {
		return
	}
	if err := room.SetProgress(env.PlayerID, *env.Progress); err != nil {
		ss.log.Debugw("progress ignored", "room", env.RoomID, "player", env.PlayerID, "error", err)
	}
}

func (ss *session) finalScore(env Envelope, _ []byte) {
	room, ok := ss.room(env.RoomID)
	if !ok {
		return
	}
	if _, err := room.RecordExplicitScore(env.PlayerID, *env.Score); err != nil {
		ss.log.Debugw("final score ignored", "room", env.RoomID, "player", env.PlayerID, "error", err)
	}
}

func (ss *session) playerMove(env Envelope, _ []byte) {
	room, ok := ss.room(env.RoomID)
	if !ok {
		return
	}
	if err := room.RelayMove(env.PlayerID, *env.Position); err != nil {
		ss.log.Debugw("move ignored", "room", env.RoomID, "player", env.PlayerID, "error", err)
	}
}

func (ss *session) ping(_ Envelope, _ []byte) {
	ss.reply(map[string]string{"type": game.TypePong})
}
