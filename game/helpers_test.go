package game_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"mazerush/game"
)

// recorder 记录所有入队消息的 Sender
type recorder struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (r *recorder) Enqueue(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, b)
}

func (r *recorder) all() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *recorder) ofType(typ string) [][]byte {
	var out [][]byte
	for _, b := range r.all() {
		var env struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(b, &env) == nil && env.Type == typ {
			out = append(out, b)
		}
	}
	return out
}

func (r *recorder) count(typ string) int { return len(r.ofType(typ)) }

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func testLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

// manualConfig 不自动倒计时、种子固定
func manualConfig() game.RoomConfig {
	cfg := game.DefaultRoomConfig()
	cfg.Countdown = 0
	cfg.Seed = func() uint64 { return 42 }
	return cfg
}

func newRoom(t *testing.T, cfg game.RoomConfig) *game.Room {
	t.Helper()
	r := game.NewRoom("R1", cfg, testLogger(t), &game.Metrics{})
	t.Cleanup(r.Close)
	return r
}

// startedRoom 两名玩家 A、B 已开局
func startedRoom(t *testing.T) (*game.Room, *recorder, *recorder) {
	t.Helper()
	r := newRoom(t, manualConfig())
	a, b := &recorder{}, &recorder{}
	require.NoError(t, r.AddPlayer("A", "alice", "", a))
	require.NoError(t, r.AddPlayer("B", "bob", "", b))
	require.NoError(t, r.Start())
	require.Equal(t, game.PhaseInProgress, r.Phase())
	return r, a, b
}

const waitFor = 2 * time.Second
