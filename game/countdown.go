package game

import "time"

// 以下方法要求调用方已持有 mu

// maybeEnterCountdown 人数达标后进入倒计时；配置了倒计时时长则到期自动开局
func (r *Room) maybeEnterCountdown() {
	if r.phase != PhaseLobby && r.phase != PhaseAvatarSelection {
		return
	}
	if len(r.players) < MinPlayers {
		return
	}
	r.phase = PhaseCountdown
	r.broadcast(Countdown{Type: TypeCountdown, RoomID: r.ID, Seconds: int(r.cfg.Countdown / time.Second)})

	if r.cfg.Countdown <= 0 || r.closed {
		return
	}
	r.countdownGen++
	gen := r.countdownGen
	r.countdownTimer = time.AfterFunc(r.cfg.Countdown, func() { r.countdownExpired(gen) })
	r.log.Debugw("countdown armed", "after", r.cfg.Countdown)
}

// countdownExpired 定时器回调。gen 不匹配说明倒计时已被取消或重新开始。
func (r *Room) countdownExpired(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.countdownGen || r.phase != PhaseCountdown || r.closed {
		return
	}
	r.countdownTimer = nil
	if err := r.start(); err != nil {
		r.log.Warnw("countdown start failed", "error", err)
	}
}

// cancelCountdown 人数不足时退回选人阶段
func (r *Room) cancelCountdown() {
	r.stopCountdownTimer()
	if len(r.claimed) > 0 {
		r.phase = PhaseAvatarSelection
	} else {
		r.phase = PhaseLobby
	}
	r.log.Infow("countdown cancelled", "players", len(r.players))
	r.broadcast(r.roomUpdate())
}

func (r *Room) stopCountdownTimer() {
	r.countdownGen++
	if r.countdownTimer != nil {
		r.countdownTimer.Stop()
		r.countdownTimer = nil
	}
}
