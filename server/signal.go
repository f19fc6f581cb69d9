package server

// signal 信令转发：原样投递给同房间内的 receiver，对方不在线时静默丢弃。
// 不解析 offer/answer/candidate 内容。
func (ss *session) signal(env Envelope, raw []byte) {
	room, err := ss.srv.registry.GetRoom(env.RoomID)
	if err != nil || !room.SendTo(env.Receiver, raw) {
		ss.srv.metrics.IncSignalsDropped()
		ss.log.Debugw("signal dropped", "room", env.RoomID, "action", env.Action,
			"sender", env.Sender, "receiver", env.Receiver)
		return
	}
	ss.srv.metrics.IncSignalsRelayed()
}
