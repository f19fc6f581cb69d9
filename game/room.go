package game

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"mazerush/maze"
)

// Phase 房间会话阶段
//
//	lobby → avatar-selection → countdown → in-progress → finished
//
// lobby 与 avatar-selection 在实际使用中是重叠的：加入后随时可以选头像。
type Phase string

const (
	PhaseLobby           Phase = "lobby"
	PhaseAvatarSelection Phase = "avatar-selection"
	PhaseCountdown       Phase = "countdown"
	PhaseInProgress      Phase = "in-progress"
	PhaseFinished        Phase = "finished"
)

// PreGame 尚未开局的阶段
func (p Phase) PreGame() bool {
	return p == PhaseLobby || p == PhaseAvatarSelection || p == PhaseCountdown
}

const (
	// MinPlayers 开局所需最少玩家数
	MinPlayers = 2
	// CoinValue 每枚金币的分值
	CoinValue = 10

	positionSalt = 0x5bd1e995
)

// RoomConfig 房间的静态配置
type RoomConfig struct {
	Width      int
	Height     int
	MaxPlayers int           // 0 表示不限
	Countdown  time.Duration // 人数达标后自动开局的倒计时，0 表示只能由客户端触发
	Seed       func() uint64 // 每局迷宫种子来源，nil 时随机
}

// DefaultRoomConfig 与前端默认画布一致的 15x15 迷宫
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{Width: 15, Height: 15, MaxPlayers: 5, Countdown: 5 * time.Second}
}

// Room 一局游戏的权威状态。所有操作都持有 mu，
// 出站消息在持锁期间入队，保证同一房间内消息顺序与状态变化顺序一致。
type Room struct {
	ID string

	mu             sync.Mutex
	cfg            RoomConfig
	phase          Phase
	players        []*Player           // 加入顺序
	claimed        map[string]PlayerID // avatar -> 持有者
	grid           maze.Grid
	exit           maze.Point
	coins          []maze.Point
	scores         map[PlayerID]int
	finishOrder    []PlayerID
	reportedScores map[PlayerID]int
	departed       map[PlayerID]Player // 对局中离开的玩家，重连时恢复位置与进度
	seed           uint64

	countdownTimer *time.Timer
	countdownGen   int
	closed         bool

	metrics *Metrics
	log     *zap.SugaredLogger
}

// NewRoom 创建房间，迷宫先用全部可走的占位网格
func NewRoom(id string, cfg RoomConfig, log *zap.SugaredLogger, metrics *Metrics) *Room {
	if cfg.Width < maze.MinSize || cfg.Height < maze.MinSize {
		def := DefaultRoomConfig()
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Seed == nil {
		cfg.Seed = rand.Uint64
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Room{
		ID:             id,
		cfg:            cfg,
		phase:          PhaseLobby,
		claimed:        make(map[string]PlayerID),
		grid:           maze.Placeholder(cfg.Width, cfg.Height),
		scores:         make(map[PlayerID]int),
		reportedScores: make(map[PlayerID]int),
		departed:       make(map[PlayerID]Player),
		metrics:        metrics,
		log:            log.With("room", id),
	}
}

// AddPlayer 玩家加入。同一 id 再次加入视为重连：替换发送端，分数保留。
// 开局后只接受房间已知的玩家重新加入。
func (r *Room) AddPlayer(id PlayerID, name, avatar string, s Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if p := r.find(id); p != nil {
		p.sender = s
		if name != "" {
			p.Name = name
		}
		r.metrics.IncJoins()
		r.log.Infow("player reconnected", "player", id)
		r.broadcast(r.roomUpdate())
		r.sendRejoinSnapshot(p)
		return nil
	}

	_, known := r.scores[id]
	if !r.phase.PreGame() && !known {
		return ErrGameInProgress
	}
	if r.cfg.MaxPlayers > 0 && len(r.players) >= r.cfg.MaxPlayers {
		return ErrRoomFull
	}

	p := &Player{ID: id, Name: name, JoinedAt: time.Now(), sender: s}
	if d, ok := r.departed[id]; ok {
		p.Position, p.Progress = d.Position, d.Progress
		delete(r.departed, id)
	}
	// 先选头像后入房的客户端会带着已预留的头像进来
	for a, holder := range r.claimed {
		if holder == id {
			p.Avatar = a
		}
	}
	if p.Avatar == "" && avatar != "" && r.phase.PreGame() {
		if _, taken := r.claimed[avatar]; !taken {
			r.claimed[avatar] = id
			p.Avatar = avatar
		}
	}

	r.players = append(r.players, p)
	if !known {
		r.scores[id] = 0
	}
	r.metrics.IncJoins()
	r.log.Infow("player joined", "player", id, "name", name, "players", len(r.players))

	r.broadcast(r.roomUpdate())
	r.broadcastExcept(id, PeerJoined{Type: TypePeerJoined, RoomID: r.ID, PeerID: id})
	r.sendRejoinSnapshot(p)
	r.maybeEnterCountdown()
	return nil
}

// RemovePlayer 移除玩家并返回剩余人数。s 非空时只有当前连接才能移除自己，
// 避免旧连接关闭时把已重连的玩家踢掉。
func (r *Room) RemovePlayer(id PlayerID, s Sender) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return len(r.players), ErrPlayerNotFound
	}
	p := r.players[idx]
	if s != nil && p.sender != s {
		return len(r.players), ErrStaleConnection
	}
	r.players = slices.Delete(r.players, idx, idx+1)
	// 开局前释放头像；对局中保留给该玩家，方便重连
	if r.phase.PreGame() {
		if p.Avatar != "" && r.claimed[p.Avatar] == id {
			delete(r.claimed, p.Avatar)
		}
	} else {
		gone := *p
		gone.sender = nil
		r.departed[id] = gone
	}
	r.metrics.IncLeaves()
	r.log.Infow("player left", "player", id, "players", len(r.players))

	r.broadcast(PlayerDisconnected{Type: TypePlayerDisconnected, PlayerID: id})
	r.broadcast(r.roomUpdate())

	switch {
	case r.phase == PhaseCountdown && len(r.players) < MinPlayers:
		r.cancelCountdown()
	case r.phase == PhaseInProgress && r.allFinished():
		r.finish()
	}
	return len(r.players), nil
}

// IsAvatarFree 只读检查
func (r *Room) IsAvatarFree(avatar string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.claimed[avatar]
	return !taken
}

// ClaimAvatar 原子地检查并占用头像。成功时释放该玩家之前的头像并广播；
// 已被他人占用返回 ErrAvatarTaken，状态不变，由调用方只回复请求者。
// 尚未入房的玩家也可以预留头像，入房时自动生效。
func (r *Room) ClaimAvatar(id PlayerID, avatar string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if avatar == "" {
		return ErrInvalidAvatar
	}
	if !r.phase.PreGame() {
		return ErrGameInProgress
	}
	if holder, taken := r.claimed[avatar]; taken {
		if holder == id {
			return nil
		}
		r.metrics.IncAvatarConflicts()
		return ErrAvatarTaken
	}

	for a, holder := range r.claimed {
		if holder == id {
			delete(r.claimed, a)
		}
	}
	r.claimed[avatar] = id
	if p := r.find(id); p != nil {
		p.Avatar = avatar
	}
	if r.phase == PhaseLobby {
		r.phase = PhaseAvatarSelection
	}
	r.log.Infow("avatar selected", "player", id, "avatar", avatar)

	r.broadcast(AvatarUpdate{
		Type:            TypeAvatarUpdate,
		Players:         r.roster(),
		SelectedAvatars: r.selectedAvatars(),
	})
	return nil
}

// ReleaseReservation 释放未入房玩家预留的头像，返回是否有释放。
// 已入房或对局中离开的玩家不受影响。
func (r *Room) ReleaseReservation(id PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.phase.PreGame() || r.find(id) != nil {
		return false
	}
	released := false
	for a, holder := range r.claimed {
		if holder == id {
			delete(r.claimed, a)
			released = true
		}
	}
	if !released {
		return false
	}
	r.log.Infow("avatar reservation released", "player", id)
	r.broadcast(AvatarUpdate{
		Type:            TypeAvatarUpdate,
		Players:         r.roster(),
		SelectedAvatars: r.selectedAvatars(),
	})
	return true
}

// Start 开局。倒计时到期与客户端 start-game 走同一路径，重复开局是空操作。
func (r *Room) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.start()
}

func (r *Room) start() error {
	if !r.phase.PreGame() {
		return ErrAlreadyStarted
	}
	if len(r.players) < MinPlayers {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPlayers, len(r.players), MinPlayers)
	}

	seed := r.cfg.Seed()
	layout, err := maze.Generate(r.cfg.Width, r.cfg.Height, seed)
	if err != nil {
		return fmt.Errorf("generate maze: %w", err)
	}
	r.stopCountdownTimer()

	rng := maze.NewRand(seed ^ positionSalt)
	positions := make([]StartPosition, 0, len(r.players))
	for _, p := range r.players {
		pos, ok := maze.RandomOpenCell(layout.Grid, rng, layout.Exit)
		if !ok {
			pos = layout.Start
		}
		p.Position = pos
		positions = append(positions, StartPosition{PlayerID: p.ID, X: pos.X, Y: pos.Y})
	}

	r.grid = layout.Grid
	r.exit = layout.Exit
	r.coins = layout.Coins
	r.seed = seed
	r.phase = PhaseInProgress
	r.metrics.IncGamesStarted()
	r.log.Infow("game started", "seed", seed, "players", len(r.players), "coins", len(r.coins))

	r.broadcast(StartGame{
		Type:      TypeStartGame,
		RoomID:    r.ID,
		Maze:      r.grid,
		Exit:      r.exit,
		Coins:     r.coinList(),
		Positions: positions,
		Seed:      seed,
	})
	return nil
}

// SendTo 原样投递给房间内指定玩家，不在线返回 false（信令转发使用）
func (r *Room) SendTo(id PlayerID, b []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.find(id)
	if p == nil || p.sender == nil {
		return false
	}
	p.send(b)
	return true
}

// Close 停止倒计时，之后的加入请求返回 ErrRoomNotFound
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.stopCountdownTimer()
}

// closeIfEmpty 空房时关闭，检查与关闭在同一把锁内完成
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.players) > 0 {
		return false
	}
	r.closed = true
	r.stopCountdownTimer()
	return true
}

// Phase 当前阶段
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// PlayerCount 当前玩家数
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// HasPlayer 玩家是否在房间内
func (r *Room) HasPlayer(id PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(id) != nil
}

// Player 返回玩家信息副本
func (r *Room) Player(id PlayerID) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.find(id)
	if p == nil {
		return Player{}, false
	}
	cp := *p
	cp.sender = nil
	return cp, true
}

// Score 玩家当前权威分数
func (r *Room) Score(id PlayerID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scores[id]
}

// FinishOrder 到达出口的顺序副本
func (r *Room) FinishOrder() []PlayerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.finishOrder)
}

// Maze 当前网格副本、出口与剩余金币
func (r *Room) Maze() (maze.Grid, maze.Point, []maze.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grid.Clone(), r.exit, r.coinList()
}

// ClaimedAvatars 已被占用的头像（排序后）
func (r *Room) ClaimedAvatars() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedAvatars()
}

// RoomSummary 管理接口使用的只读摘要
type RoomSummary struct {
	ID              string           `json:"roomId"`
	Phase           Phase            `json:"phase"`
	Players         []RosterEntry    `json:"players"`
	SelectedAvatars []string         `json:"selectedAvatars"`
	CoinsLeft       int              `json:"coinsLeft"`
	FinishOrder     []PlayerID       `json:"finishOrder"`
	Scores          map[PlayerID]int `json:"scores"`
	Seed            uint64           `json:"seed,string"`
}

// Snapshot 生成摘要
func (r *Room) Snapshot() RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	scores := make(map[PlayerID]int, len(r.scores))
	for id, s := range r.scores {
		scores[id] = s
	}
	finish := slices.Clone(r.finishOrder)
	if finish == nil {
		finish = []PlayerID{}
	}
	return RoomSummary{
		ID:              r.ID,
		Phase:           r.phase,
		Players:         r.roster(),
		SelectedAvatars: r.selectedAvatars(),
		CoinsLeft:       len(r.coins),
		FinishOrder:     finish,
		Scores:          scores,
		Seed:            r.seed,
	}
}

// 以下方法要求调用方已持有 mu

func (r *Room) find(id PlayerID) *Player {
	if i := r.indexOf(id); i >= 0 {
		return r.players[i]
	}
	return nil
}

func (r *Room) indexOf(id PlayerID) int {
	return slices.IndexFunc(r.players, func(p *Player) bool { return p.ID == id })
}

func (r *Room) roster() []RosterEntry {
	out := make([]RosterEntry, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.rosterEntry())
	}
	return out
}

func (r *Room) selectedAvatars() []string {
	out := make([]string, 0, len(r.claimed))
	for a := range r.claimed {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

func (r *Room) roomUpdate() RoomUpdate {
	return RoomUpdate{
		Type:            TypeRoomUpdate,
		RoomID:          r.ID,
		Phase:           r.phase,
		Players:         r.roster(),
		SelectedAvatars: r.selectedAvatars(),
	}
}

func (r *Room) coinList() []maze.Point {
	out := make([]maze.Point, len(r.coins))
	copy(out, r.coins)
	return out
}

// sendRejoinSnapshot 对局中重新加入的玩家补发开局快照
func (r *Room) sendRejoinSnapshot(p *Player) {
	if r.phase != PhaseInProgress {
		return
	}
	positions := make([]StartPosition, 0, len(r.players))
	for _, q := range r.players {
		positions = append(positions, StartPosition{PlayerID: q.ID, X: q.Position.X, Y: q.Position.Y})
	}
	p.send(Encode(StartGame{
		Type:      TypeStartGame,
		RoomID:    r.ID,
		Maze:      r.grid,
		Exit:      r.exit,
		Coins:     r.coinList(),
		Positions: positions,
		Seed:      r.seed,
	}))
}

func (r *Room) broadcast(v any) {
	b := Encode(v)
	for _, p := range r.players {
		p.send(b)
	}
}

func (r *Room) broadcastExcept(id PlayerID, v any) {
	b := Encode(v)
	for _, p := range r.players {
		if p.ID != id {
			p.send(b)
		}
	}
}
