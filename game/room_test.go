package game_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mazerush/game"
	"mazerush/maze"
)

func TestNewRoom_PlaceholderMaze(t *testing.T) {
	r := newRoom(t, manualConfig())

	grid, _, coins := r.Maze()
	assert.Equal(t, 15, grid.Width())
	assert.Equal(t, 15, grid.Height())
	assert.Len(t, grid.OpenCells(), 15*15)
	assert.Empty(t, coins)
	assert.Equal(t, game.PhaseLobby, r.Phase())
}

func TestNewRoom_InvalidSizeFallsBack(t *testing.T) {
	cfg := manualConfig()
	cfg.Width, cfg.Height = 1, 0
	r := newRoom(t, cfg)

	grid, _, _ := r.Maze()
	assert.Equal(t, 15, grid.Width())
}

// 端到端场景：两人入房、抢头像、开局、先后到达终点
func TestRoom_RaceScenario(t *testing.T) {
	r := newRoom(t, manualConfig())
	a, b := &recorder{}, &recorder{}

	require.NoError(t, r.AddPlayer("A", "alice", "", a))
	require.NoError(t, r.AddPlayer("B", "bob", "", b))
	assert.Equal(t, game.PhaseCountdown, r.Phase())

	require.NoError(t, r.ClaimAvatar("A", "hero1"))
	err := r.ClaimAvatar("B", "hero1")
	require.ErrorIs(t, err, game.ErrAvatarTaken)
	require.NoError(t, r.ClaimAvatar("B", "hero2"))
	assert.Equal(t, []string{"hero1", "hero2"}, r.ClaimedAvatars())

	require.NoError(t, r.Start())
	require.Equal(t, 1, a.count(game.TypeStartGame))
	require.Equal(t, 1, b.count(game.TypeStartGame))

	start := decode[game.StartGame](t, a.ofType(game.TypeStartGame)[0])
	assert.Equal(t, uint64(42), start.Seed)
	assert.Len(t, start.Positions, 2)
	assert.Equal(t, maze.Open, start.Maze[start.Exit.Y][start.Exit.X])
	for _, p := range start.Positions {
		pt := maze.Point{X: p.X, Y: p.Y}
		assert.True(t, start.Maze.IsOpen(pt))
		assert.NotEqual(t, start.Exit, pt)
	}

	rank, err := r.RecordFinish("A")
	require.NoError(t, err)
	assert.Equal(t, 1, rank)
	assert.Equal(t, 50, r.Score("A"))
	assert.Equal(t, game.PhaseInProgress, r.Phase())

	rank, err = r.RecordFinish("B")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
	assert.Equal(t, 40, r.Score("B"))
	assert.Equal(t, game.PhaseFinished, r.Phase())

	boards := a.ofType(game.TypeLeaderboard)
	require.Len(t, boards, 3)
	assert.False(t, decode[game.Leaderboard](t, boards[0]).IsFinal)

	final := decode[game.Leaderboard](t, boards[2])
	require.True(t, final.IsFinal)
	require.Len(t, final.Leaderboard, 2)
	assert.Equal(t, game.PlayerID("A"), final.Leaderboard[0].PlayerID)
	assert.Equal(t, 50, final.Leaderboard[0].Score)
	assert.Equal(t, game.PlayerID("B"), final.Leaderboard[1].PlayerID)
	assert.Equal(t, 40, final.Leaderboard[1].Score)
}

func TestRoom_StartIsIdempotent(t *testing.T) {
	r, a, _ := startedRoom(t)
	grid, exit, coins := r.Maze()

	err := r.Start()
	require.ErrorIs(t, err, game.ErrAlreadyStarted)

	grid2, exit2, coins2 := r.Maze()
	assert.Equal(t, grid, grid2)
	assert.Equal(t, exit, exit2)
	assert.Equal(t, coins, coins2)
	assert.Equal(t, 1, a.count(game.TypeStartGame))
}

func TestRoom_StartNeedsTwoPlayers(t *testing.T) {
	r := newRoom(t, manualConfig())
	require.NoError(t, r.AddPlayer("A", "alice", "", &recorder{}))

	err := r.Start()
	require.ErrorIs(t, err, game.ErrNotEnoughPlayers)
	assert.Equal(t, game.PhaseLobby, r.Phase())
}

func TestRoom_CollectCoinTwice(t *testing.T) {
	r, _, b := startedRoom(t)
	_, _, coins := r.Maze()
	require.NotEmpty(t, coins)
	coin := coins[0]

	ok, err := r.CollectCoin("A", coin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.CollectCoin("A", coin)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, game.CoinValue, r.Score("A"))
	_, _, left := r.Maze()
	assert.Len(t, left, len(coins)-1)
	assert.NotContains(t, left, coin)

	updates := b.ofType(game.TypeUpdateCoins)
	require.Len(t, updates, 1)
	u := decode[game.CoinUpdate](t, updates[0])
	assert.Equal(t, coin, u.CoinPosition)
	assert.Equal(t, game.CoinValue, u.Score)
}

func TestRoom_FinishTwice(t *testing.T) {
	r, a, _ := startedRoom(t)

	_, err := r.RecordFinish("A")
	require.NoError(t, err)
	rank, err := r.RecordFinish("A")
	require.ErrorIs(t, err, game.ErrAlreadyFinished)
	assert.Equal(t, 1, rank)

	assert.Equal(t, []game.PlayerID{"A"}, r.FinishOrder())
	assert.Equal(t, 50, r.Score("A"))
	assert.Equal(t, 1, a.count(game.TypeLeaderboard))
}

func TestRoom_FinishedIsTerminal(t *testing.T) {
	r, _, _ := startedRoom(t)
	_, _, coins := r.Maze()
	_, err := r.RecordFinish("A")
	require.NoError(t, err)
	_, err = r.RecordFinish("B")
	require.NoError(t, err)
	require.Equal(t, game.PhaseFinished, r.Phase())

	_, err = r.CollectCoin("A", coins[0])
	assert.ErrorIs(t, err, game.ErrGameNotRunning)
	_, err = r.RecordFinish("B")
	assert.ErrorIs(t, err, game.ErrGameNotRunning)
	assert.ErrorIs(t, r.SetProgress("A", game.Progress{CoinsCollected: 9}), game.ErrGameNotRunning)

	assert.Equal(t, 50, r.Score("A"))
	assert.Equal(t, 40, r.Score("B"))
}

func TestRoom_CoinBeforeStart(t *testing.T) {
	r := newRoom(t, manualConfig())
	require.NoError(t, r.AddPlayer("A", "alice", "", &recorder{}))

	_, err := r.CollectCoin("A", maze.Point{X: 1, Y: 1})
	assert.ErrorIs(t, err, game.ErrGameNotRunning)
	assert.Zero(t, r.Score("A"))
}

func TestRoom_ConcurrentAvatarClaims(t *testing.T) {
	cfg := manualConfig()
	cfg.MaxPlayers = 0
	r := newRoom(t, cfg)

	const n = 20
	for i := range n {
		require.NoError(t, r.AddPlayer(game.PlayerID(fmt.Sprintf("p%d", i)), "", "", &recorder{}))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		rejected int
	)
	for i := range n {
		wg.Add(1)
		go func(id game.PlayerID) {
			defer wg.Done()
			err := r.ClaimAvatar(id, "hero1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, game.ErrAvatarTaken):
				rejected++
			}
		}(game.PlayerID(fmt.Sprintf("p%d", i)))
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, n-1, rejected)
	assert.Equal(t, []string{"hero1"}, r.ClaimedAvatars())
}

func TestRoom_ClaimAvatar(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *game.Room)
		player  game.PlayerID
		avatar  string
		wantErr error
	}{
		{name: "free", player: "A", avatar: "hero1"},
		{name: "empty avatar", player: "A", avatar: "", wantErr: game.ErrInvalidAvatar},
		{
			name:   "reclaim own",
			setup:  func(r *game.Room) { _ = r.ClaimAvatar("A", "hero1") },
			player: "A", avatar: "hero1",
		},
		{
			name:   "taken",
			setup:  func(r *game.Room) { _ = r.ClaimAvatar("B", "hero1") },
			player: "A", avatar: "hero1", wantErr: game.ErrAvatarTaken,
		},
		{
			name:   "after start",
			setup:  func(r *game.Room) { _ = r.Start() },
			player: "A", avatar: "hero3", wantErr: game.ErrGameInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoom(t, manualConfig())
			require.NoError(t, r.AddPlayer("A", "alice", "", &recorder{}))
			require.NoError(t, r.AddPlayer("B", "bob", "", &recorder{}))
			if tt.setup != nil {
				tt.setup(r)
			}

			err := r.ClaimAvatar(tt.player, tt.avatar)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			p, ok := r.Player(tt.player)
			require.True(t, ok)
			assert.Equal(t, tt.avatar, p.Avatar)
		})
	}
}

func TestRoom_ClaimReleasesPreviousAvatar(t *testing.T) {
	r := newRoom(t, manualConfig())
	a := &recorder{}
	require.NoError(t, r.AddPlayer("A", "alice", "", a))

	require.NoError(t, r.ClaimAvatar("A", "hero1"))
	assert.Equal(t, game.PhaseAvatarSelection, r.Phase())
	require.NoError(t, r.ClaimAvatar("A", "hero2"))

	assert.Equal(t, []string{"hero2"}, r.ClaimedAvatars())
	assert.True(t, r.IsAvatarFree("hero1"))
	assert.False(t, r.IsAvatarFree("hero2"))
	assert.Equal(t, 2, a.count(game.TypeAvatarUpdate))
}

func TestRoom_AvatarReservedBeforeJoin(t *testing.T) {
	r := newRoom(t, manualConfig())

	require.NoError(t, r.ClaimAvatar("A", "hero1"))
	require.NoError(t, r.AddPlayer("A", "alice", "hero9", &recorder{}))

	p, ok := r.Player("A")
	require.True(t, ok)
	assert.Equal(t, "hero1", p.Avatar)
	assert.Equal(t, []string{"hero1"}, r.ClaimedAvatars())
}

func TestRoom_ReleaseReservation(t *testing.T) {
	r := newRoom(t, manualConfig())
	a := &recorder{}
	require.NoError(t, r.AddPlayer("A", "alice", "", a))
	require.NoError(t, r.ClaimAvatar("A", "hero2"))
	require.NoError(t, r.ClaimAvatar("ghost", "hero1"))
	assert.ErrorIs(t, r.ClaimAvatar("B", "hero1"), game.ErrAvatarTaken)

	assert.True(t, r.ReleaseReservation("ghost"))
	assert.True(t, r.IsAvatarFree("hero1"))
	assert.Equal(t, []string{"hero2"}, r.ClaimedAvatars())
	assert.Equal(t, 3, a.count(game.TypeAvatarUpdate))

	// 已入房玩家的头像不受影响，重复释放是空操作
	assert.False(t, r.ReleaseReservation("A"))
	assert.False(t, r.ReleaseReservation("ghost"))
	assert.Equal(t, []string{"hero2"}, r.ClaimedAvatars())
	require.NoError(t, r.ClaimAvatar("B", "hero1"))
}

func TestRoom_AvatarOnJoin(t *testing.T) {
	r := newRoom(t, manualConfig())
	require.NoError(t, r.AddPlayer("A", "alice", "hero1", &recorder{}))
	require.NoError(t, r.AddPlayer("B", "bob", "hero1", &recorder{}))

	a, _ := r.Player("A")
	b, _ := r.Player("B")
	assert.Equal(t, "hero1", a.Avatar)
	assert.Empty(t, b.Avatar)
}

func TestRoom_ScoresNeverDecrease(t *testing.T) {
	cfg := manualConfig()
	cfg.MaxPlayers = 5
	r := newRoom(t, cfg)
	ids := []game.PlayerID{"A", "B", "C", "D", "E"}
	for _, id := range ids {
		require.NoError(t, r.AddPlayer(id, string(id), "", &recorder{}))
	}
	require.NoError(t, r.Start())
	_, _, coins := r.Maze()

	last := map[game.PlayerID]int{}
	check := func() {
		for _, id := range ids {
			s := r.Score(id)
			require.GreaterOrEqual(t, s, last[id], "score of %s decreased", id)
			last[id] = s
		}
	}

	for i, c := range coins {
		id := ids[i%len(ids)]
		_, err := r.CollectCoin(id, c)
		require.NoError(t, err)
		check()
		_, _ = r.CollectCoin(ids[(i+1)%len(ids)], c)
		check()
	}
	for _, id := range ids {
		_, err := r.RecordFinish(id)
		require.NoError(t, err)
		check()
		_, _ = r.RecordFinish(id)
		check()
	}
	assert.Equal(t, game.PhaseFinished, r.Phase())
}

func TestRoom_LeaderboardTieBreak(t *testing.T) {
	cfg := manualConfig()
	r := newRoom(t, cfg)
	for _, id := range []game.PlayerID{"A", "B", "C"} {
		require.NoError(t, r.AddPlayer(id, string(id), "", &recorder{}))
	}
	require.NoError(t, r.Start())
	_, _, coins := r.Maze()
	require.GreaterOrEqual(t, len(coins), 5)

	// A: 1 枚金币 + 第 2 名 = 50；C: 第 1 名 = 50；B 未完成
	_, err := r.RecordFinish("C")
	require.NoError(t, err)
	_, err = r.CollectCoin("A", coins[0])
	require.NoError(t, err)
	_, err = r.RecordFinish("A")
	require.NoError(t, err)

	board := r.Leaderboard()
	require.Len(t, board, 3)
	assert.Equal(t, game.PlayerID("C"), board[0].PlayerID)
	assert.Equal(t, 1, board[0].Position)
	assert.Equal(t, game.PlayerID("A"), board[1].PlayerID)
	assert.Equal(t, 2, board[1].Position)
	assert.Equal(t, game.PlayerID("B"), board[2].PlayerID)
	assert.Zero(t, board[2].Position)
}

func TestRoom_LeaderboardJoinOrderTieBreak(t *testing.T) {
	r, _, _ := startedRoom(t)

	board := r.Leaderboard()
	require.Len(t, board, 2)
	assert.Equal(t, game.PlayerID("A"), board[0].PlayerID)
	assert.Equal(t, game.PlayerID("B"), board[1].PlayerID)
}

func TestFinishBonus(t *testing.T) {
	tests := []struct {
		rank int
		want int
	}{
		{1, 50}, {2, 40}, {3, 30}, {5, 10}, {6, 0}, {7, -10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, game.FinishBonus(tt.rank), "rank %d", tt.rank)
	}
}

func TestRoom_MoveOntoExitFinishes(t *testing.T) {
	r, a, b := startedRoom(t)
	_, exit, _ := r.Maze()

	require.NoError(t, r.RelayMove("A", maze.Point{X: 0, Y: 0}))
	assert.Empty(t, r.FinishOrder())

	require.NoError(t, r.RelayMove("A", exit))
	require.NoError(t, r.RelayMove("A", exit))
	assert.Equal(t, []game.PlayerID{"A"}, r.FinishOrder())
	assert.Equal(t, 50, r.Score("A"))

	moves := b.ofType(game.TypePlayerMove)
	require.Len(t, moves, 3)
	m := decode[game.PlayerMove](t, moves[1])
	assert.Equal(t, exit, m.Position)
	assert.Equal(t, 3, a.count(game.TypePlayerMove))

	p, _ := r.Player("A")
	assert.Equal(t, exit, p.Position)
}

func TestRoom_SetProgress(t *testing.T) {
	r, _, b := startedRoom(t)
	prog := game.Progress{CoinsCollected: 3, CompletionPercentage: 42.5, TimeRemaining: 90}

	require.NoError(t, r.SetProgress("A", prog))

	p, _ := r.Player("A")
	assert.Equal(t, prog, p.Progress)
	assert.Zero(t, r.Score("A"))
	assert.Equal(t, game.PhaseInProgress, r.Phase())

	updates := b.ofType(game.TypeProgressUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, prog, decode[game.ProgressUpdate](t, updates[0]).Progress)

	assert.ErrorIs(t, r.SetProgress("Z", prog), game.ErrPlayerNotFound)
}

func TestRoom_ExplicitScores(t *testing.T) {
	r, a, _ := startedRoom(t)

	done, err := r.RecordExplicitScore("B", 70)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Zero(t, a.count(game.TypeFinalScores))

	done, err = r.RecordExplicitScore("A", 120)
	require.NoError(t, err)
	assert.True(t, done)

	msgs := a.ofType(game.TypeFinalScores)
	require.Len(t, msgs, 1)
	fs := decode[game.FinalScores](t, msgs[0])
	require.Len(t, fs.Scores, 2)
	assert.Equal(t, game.PlayerID("A"), fs.Scores[0].PlayerID)
	assert.Equal(t, 120, fs.Scores[0].Score)
	assert.Equal(t, 70, fs.Scores[1].Score)

	// 自报分数不进入权威分数
	assert.Zero(t, r.Score("A"))
	assert.Zero(t, r.Score("B"))
}

func TestRoom_JoinAndLeaveBroadcasts(t *testing.T) {
	r := newRoom(t, manualConfig())
	a, b := &recorder{}, &recorder{}

	require.NoError(t, r.AddPlayer("A", "alice", "", a))
	require.NoError(t, r.AddPlayer("B", "bob", "", b))

	peers := a.ofType(game.TypePeerJoined)
	require.Len(t, peers, 1)
	assert.Equal(t, game.PlayerID("B"), decode[game.PeerJoined](t, peers[0]).PeerID)
	assert.Zero(t, b.count(game.TypePeerJoined))

	updates := a.ofType(game.TypeRoomUpdate)
	require.Len(t, updates, 2)
	ru := decode[game.RoomUpdate](t, updates[1])
	assert.Len(t, ru.Players, 2)
	assert.Equal(t, 1, a.count(game.TypeCountdown))

	left, err := r.RemovePlayer("B", b)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	gone := a.ofType(game.TypePlayerDisconnected)
	require.Len(t, gone, 1)
	assert.Equal(t, game.PlayerID("B"), decode[game.PlayerDisconnected](t, gone[0]).PlayerID)
	assert.Equal(t, game.PhaseLobby, r.Phase())

	_, err = r.RemovePlayer("B", nil)
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestRoom_LeaveReleasesAvatarBeforeStart(t *testing.T) {
	r := newRoom(t, manualConfig())
	s := &recorder{}
	require.NoError(t, r.AddPlayer("A", "alice", "hero1", s))

	_, err := r.RemovePlayer("A", s)
	require.NoError(t, err)
	assert.True(t, r.IsAvatarFree("hero1"))
}

func TestRoom_ReconnectReplacesSender(t *testing.T) {
	r := newRoom(t, manualConfig())
	old, fresh := &recorder{}, &recorder{}

	require.NoError(t, r.AddPlayer("A", "alice", "", old))
	require.NoError(t, r.AddPlayer("A", "alice", "", fresh))
	assert.Equal(t, 1, r.PlayerCount())

	// 旧连接关闭不能把新连接踢掉
	_, err := r.RemovePlayer("A", old)
	require.ErrorIs(t, err, game.ErrStaleConnection)
	assert.True(t, r.HasPlayer("A"))

	old.reset()
	assert.True(t, r.SendTo("A", []byte(`{"type":"signal"}`)))
	assert.Empty(t, old.all())
	assert.Equal(t, 1, fresh.count("signal"))
}

func TestRoom_RejoinMidGameKeepsScore(t *testing.T) {
	r, a, _ := startedRoom(t)
	_, _, coins := r.Maze()
	_, err := r.CollectCoin("A", coins[0])
	require.NoError(t, err)

	left, err := r.RemovePlayer("A", a)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
	assert.Equal(t, game.PhaseInProgress, r.Phase())

	again := &recorder{}
	require.NoError(t, r.AddPlayer("A", "alice", "", again))
	assert.Equal(t, game.CoinValue, r.Score("A"))

	snaps := again.ofType(game.TypeStartGame)
	require.Len(t, snaps, 1)
	snap := decode[game.StartGame](t, snaps[0])
	assert.Len(t, snap.Coins, len(coins)-1)
	assert.Equal(t, uint64(42), snap.Seed)
}

func TestRoom_UnknownPlayerCannotJoinMidGame(t *testing.T) {
	r, _, _ := startedRoom(t)

	err := r.AddPlayer("C", "carol", "", &recorder{})
	assert.ErrorIs(t, err, game.ErrGameInProgress)
	assert.Equal(t, 2, r.PlayerCount())
}

func TestRoom_Full(t *testing.T) {
	cfg := manualConfig()
	cfg.MaxPlayers = 2
	r := newRoom(t, cfg)
	require.NoError(t, r.AddPlayer("A", "", "", &recorder{}))
	require.NoError(t, r.AddPlayer("B", "", "", &recorder{}))

	assert.ErrorIs(t, r.AddPlayer("C", "", "", &recorder{}), game.ErrRoomFull)
}

func TestRoom_LeaveCompletesRace(t *testing.T) {
	r, a, b := startedRoom(t)

	_, err := r.RecordFinish("A")
	require.NoError(t, err)
	_, err = r.RemovePlayer("B", b)
	require.NoError(t, err)

	assert.Equal(t, game.PhaseFinished, r.Phase())
	boards := a.ofType(game.TypeLeaderboard)
	require.NotEmpty(t, boards)
	assert.True(t, decode[game.Leaderboard](t, boards[len(boards)-1]).IsFinal)
	assert.Equal(t, 50, r.Score("A"))
}

func TestRoom_DepartedFinisherStaysOnLeaderboard(t *testing.T) {
	r, _, b := startedRoom(t)

	_, err := r.RecordFinish("A")
	require.NoError(t, err)
	_, err = r.RemovePlayer("A", nil)
	require.NoError(t, err)
	_, err = r.RecordFinish("B")
	require.NoError(t, err)

	assert.Equal(t, game.PhaseFinished, r.Phase())
	boards := b.ofType(game.TypeLeaderboard)
	require.NotEmpty(t, boards)
	final := decode[game.Leaderboard](t, boards[len(boards)-1])
	assert.True(t, final.IsFinal)
	assert.Equal(t, []game.LeaderboardEntry{
		{PlayerID: "A", Name: "alice", Score: 50, Position: 1},
		{PlayerID: "B", Name: "bob", Score: 40, Position: 2},
	}, final.Leaderboard)
	assert.Equal(t, final.Leaderboard, r.Leaderboard())
}

func TestRoom_ClosedRejectsJoin(t *testing.T) {
	r := newRoom(t, manualConfig())
	r.Close()

	assert.ErrorIs(t, r.AddPlayer("A", "", "", &recorder{}), game.ErrRoomNotFound)
}

func TestRoom_CountdownStartsGameOnce(t *testing.T) {
	cfg := manualConfig()
	cfg.Countdown = 20 * time.Millisecond
	r := newRoom(t, cfg)
	a := &recorder{}

	require.NoError(t, r.AddPlayer("A", "alice", "", a))
	require.NoError(t, r.AddPlayer("B", "bob", "", &recorder{}))
	require.Equal(t, game.PhaseCountdown, r.Phase())

	require.Eventually(t, func() bool {
		return r.Phase() == game.PhaseInProgress
	}, waitFor, 5*time.Millisecond)

	assert.ErrorIs(t, r.Start(), game.ErrAlreadyStarted)
	assert.Equal(t, 1, a.count(game.TypeStartGame))
}

func TestRoom_ExplicitStartBeatsCountdown(t *testing.T) {
	cfg := manualConfig()
	cfg.Countdown = 30 * time.Millisecond
	r := newRoom(t, cfg)
	a := &recorder{}

	require.NoError(t, r.AddPlayer("A", "alice", "", a))
	require.NoError(t, r.AddPlayer("B", "bob", "", &recorder{}))
	require.NoError(t, r.Start())

	time.Sleep(4 * cfg.Countdown)
	assert.Equal(t, 1, a.count(game.TypeStartGame))
}

func TestRoom_CountdownCancelledWhenPlayerLeaves(t *testing.T) {
	cfg := manualConfig()
	cfg.Countdown = 30 * time.Millisecond
	r := newRoom(t, cfg)
	a, b := &recorder{}, &recorder{}

	require.NoError(t, r.AddPlayer("A", "alice", "", a))
	require.NoError(t, r.AddPlayer("B", "bob", "", b))
	require.NoError(t, r.ClaimAvatar("A", "hero1"))
	_, err := r.RemovePlayer("B", b)
	require.NoError(t, err)

	assert.Equal(t, game.PhaseAvatarSelection, r.Phase())
	time.Sleep(4 * cfg.Countdown)
	assert.Equal(t, game.PhaseAvatarSelection, r.Phase())
	assert.Zero(t, a.count(game.TypeStartGame))
}

func TestRoom_Snapshot(t *testing.T) {
	r, _, _ := startedRoom(t)
	_, _, coins := r.Maze()

	s := r.Snapshot()
	assert.Equal(t, "R1", s.ID)
	assert.Equal(t, game.PhaseInProgress, s.Phase)
	assert.Len(t, s.Players, 2)
	assert.Equal(t, len(coins), s.CoinsLeft)
	assert.Equal(t, uint64(42), s.Seed)
	assert.Equal(t, map[game.PlayerID]int{"A": 0, "B": 0}, s.Scores)
	assert.Empty(t, s.FinishOrder)
}
