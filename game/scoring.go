package game

import (
	"cmp"
	"errors"
	"math"
	"slices"

	"mazerush/maze"
)

// FinishBonus 到达出口的名次奖励：50 - 10*(rank-1)。
// 第 6 名起为 0 或负数，按原规则保留，不做截断。
func FinishBonus(rank int) int {
	return 50 - 10*(rank-1)
}

// CollectCoin 拾取金币。金币已不存在（重复或过期上报）时返回 false，不是错误。
func (r *Room) CollectCoin(id PlayerID, at maze.Point) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseInProgress {
		return false, ErrGameNotRunning
	}
	if r.find(id) == nil {
		return false, ErrPlayerNotFound
	}
	idx := slices.Index(r.coins, at)
	if idx < 0 {
		r.log.Debugw("coin already gone", "player", id, "x", at.X, "y", at.Y)
		return false, nil
	}

	r.coins = slices.Delete(r.coins, idx, idx+1)
	r.scores[id] += CoinValue
	r.metrics.IncCoinsCollected()

	r.broadcast(CoinUpdate{
		Type:         TypeUpdateCoins,
		PlayerID:     id,
		CoinPosition: at,
		Coins:        r.coinList(),
		Score:        r.scores[id],
	})
	return true, nil
}

// RecordFinish 记录到达出口，返回名次。重复上报返回 ErrAlreadyFinished，分数不变。
func (r *Room) RecordFinish(id PlayerID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordFinish(id)
}

func (r *Room) recordFinish(id PlayerID) (int, error) {
	if r.phase != PhaseInProgress {
		return 0, ErrGameNotRunning
	}
	if r.find(id) == nil {
		return 0, ErrPlayerNotFound
	}
	if i := slices.Index(r.finishOrder, id); i >= 0 {
		return i + 1, ErrAlreadyFinished
	}

	r.finishOrder = append(r.finishOrder, id)
	rank := len(r.finishOrder)
	bonus := FinishBonus(rank)
	r.scores[id] += bonus
	r.metrics.IncFinishes()
	r.log.Infow("player finished", "player", id, "rank", rank, "bonus", bonus, "score", r.scores[id])

	r.broadcast(Leaderboard{Type: TypeLeaderboard, Leaderboard: r.leaderboard(), IsFinal: false})
	if r.allFinished() {
		r.finish()
	}
	return rank, nil
}

// SetProgress 更新展示用进度并回显给房间，不影响阶段与分数
func (r *Room) SetProgress(id PlayerID, prog Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseFinished {
		return ErrGameNotRunning
	}
	p := r.find(id)
	if p == nil {
		return ErrPlayerNotFound
	}
	p.Progress = prog
	r.broadcast(ProgressUpdate{Type: TypeProgressUpdate, PlayerID: id, Progress: prog})
	return nil
}

// RecordExplicitScore 保存客户端自报分数。自报分数只用于 final-scores 展示，
// 不写入权威分数。全部在场玩家都上报后广播 final-scores，返回是否已广播。
func (r *Room) RecordExplicitScore(id PlayerID, score int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.find(id) == nil {
		return false, ErrPlayerNotFound
	}
	r.reportedScores[id] = score
	r.log.Infow("final score reported", "player", id, "score", score)

	for _, p := range r.players {
		if _, ok := r.reportedScores[p.ID]; !ok {
			return false, nil
		}
	}

	entries := make([]LeaderboardEntry, 0, len(r.players))
	for _, p := range r.players {
		entries = append(entries, LeaderboardEntry{PlayerID: p.ID, Name: p.Name, Score: r.reportedScores[p.ID]})
	}
	slices.SortStableFunc(entries, func(a, b LeaderboardEntry) int { return cmp.Compare(b.Score, a.Score) })
	r.broadcast(FinalScores{Type: TypeFinalScores, Scores: entries})
	return true, nil
}

// RelayMove 转发位置，不做校验。对局中踩到出口等同于上报完成。
func (r *Room) RelayMove(id PlayerID, to maze.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(id)
	if p == nil {
		return ErrPlayerNotFound
	}
	p.Position = to
	r.broadcast(PlayerMove{Type: TypePlayerMove, PlayerID: id, Position: to})

	if r.phase == PhaseInProgress && to == r.exit {
		if _, err := r.recordFinish(id); err != nil && !errors.Is(err, ErrAlreadyFinished) {
			return err
		}
	}
	return nil
}

// Leaderboard 当前排行：在场玩家加上已完成后离开的玩家。
// 分数降序，同分先比到达名次（已完成优先），再比加入顺序
func (r *Room) Leaderboard() []LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaderboard()
}

func (r *Room) leaderboard() []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(r.players))
	for _, p := range r.players {
		entries = append(entries, LeaderboardEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    r.scores[p.ID],
			Position: slices.Index(r.finishOrder, p.ID) + 1,
		})
	}
	// 已完成后离开的玩家仍保留名次与分数
	for i, id := range r.finishOrder {
		if r.find(id) != nil {
			continue
		}
		if d, ok := r.departed[id]; ok {
			entries = append(entries, LeaderboardEntry{
				PlayerID: id,
				Name:     d.Name,
				Score:    r.scores[id],
				Position: i + 1,
			})
		}
	}
	// players 已按加入顺序排列，稳定排序即可保留最后一级比较
	slices.SortStableFunc(entries, func(a, b LeaderboardEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(finishKey(a.Position), finishKey(b.Position))
	})
	return entries
}

// finishKey 未完成（0）排在所有已完成名次之后
func finishKey(pos int) int {
	if pos == 0 {
		return math.MaxInt
	}
	return pos
}

func (r *Room) allFinished() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !slices.Contains(r.finishOrder, p.ID) {
			return false
		}
	}
	return true
}

// finish 广播最终排行并进入终态
func (r *Room) finish() {
	r.phase = PhaseFinished
	r.log.Infow("game finished", "finish_order", r.finishOrder)
	r.broadcast(Leaderboard{Type: TypeLeaderboard, Leaderboard: r.leaderboard(), IsFinal: true})
}
