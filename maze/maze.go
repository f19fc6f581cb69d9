// Package maze 生成房间对局使用的迷宫：墙/路网格、出口与金币位置。
// 同一 (width, height, seed) 总是得到同一结果，便于复现与测试。
package maze

import (
	"errors"
	"math/rand/v2"
)

// Cell 格子状态，数值与前端约定一致：0 可走，1 墙
type Cell int

const (
	Open Cell = 0
	Wall Cell = 1
)

// MinSize 迷宫最小边长
const MinSize = 3

// ErrTooSmall 迷宫尺寸不足
var ErrTooSmall = errors.New("maze: width and height must be at least 3")

// Point 格子坐标（x 为列，y 为行）
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Grid 按行存储的网格：grid[y][x]
type Grid [][]Cell

// Layout 一次生成的完整结果
type Layout struct {
	Grid  Grid
	Exit  Point
	Coins []Point
	Start Point // 雕刻起点，所有可走格子都从这里连通
}

// 上、下、左、右
var directions = [4]Point{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

// NewRand 基于种子的确定性随机源
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate 递归回溯生成完美迷宫，并放置出口与金币
func Generate(width, height int, seed uint64) (Layout, error) {
	if width < MinSize || height < MinSize {
		return Layout{}, ErrTooSmall
	}
	rng := NewRand(seed)

	grid := filled(width, height, Wall)
	// 起点取奇数坐标，保证两格步长雕刻始终落在同一格点上
	start := Point{X: oddBelow(rng, width), Y: oddBelow(rng, height)}
	carve(grid, start, rng)

	exit := pickExit(grid, rng)
	coins := placeCoins(grid, exit, rng)

	return Layout{Grid: grid, Exit: exit, Coins: coins, Start: start}, nil
}

// Placeholder 全部可走的占位网格，房间创建后、正式开局前供前端渲染
func Placeholder(width, height int) Grid {
	return filled(width, height, Open)
}

// CoinCount 目标金币数：max(5, w*h/10)
func CoinCount(width, height int) int {
	return max(5, width*height/10)
}

// Width 网格列数
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height 网格行数
func (g Grid) Height() int { return len(g) }

// InBounds 坐标是否在网格内
func (g Grid) InBounds(p Point) bool {
	return p.Y >= 0 && p.Y < len(g) && p.X >= 0 && p.X < len(g[p.Y])
}

// IsOpen 坐标在网格内且可走
func (g Grid) IsOpen(p Point) bool {
	return g.InBounds(p) && g[p.Y][p.X] == Open
}

// Clone 深拷贝
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for y := range g {
		out[y] = append([]Cell(nil), g[y]...)
	}
	return out
}

// OpenCells 按行优先顺序列出所有可走格子
func (g Grid) OpenCells() []Point {
	var cells []Point
	for y := range g {
		for x := range g[y] {
			if g[y][x] == Open {
				cells = append(cells, Point{X: x, Y: y})
			}
		}
	}
	return cells
}

// RandomOpenCell 拒绝采样一个可走格子，exclude 中的坐标不会被选中。
// 采样次数用尽后退化为在候选集中均匀选取；没有候选时返回 false。
func RandomOpenCell(g Grid, rng *rand.Rand, exclude ...Point) (Point, bool) {
	w, h := g.Width(), g.Height()
	if w == 0 || h == 0 {
		return Point{}, false
	}
	for attempt := 0; attempt < w*h*4; attempt++ {
		p := Point{X: rng.IntN(w), Y: rng.IntN(h)}
		if g.IsOpen(p) && !contains(exclude, p) {
			return p, true
		}
	}
	var candidates []Point
	for _, p := range g.OpenCells() {
		if !contains(exclude, p) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Point{}, false
	}
	return candidates[rng.IntN(len(candidates))], true
}

func filled(width, height int, c Cell) Grid {
	g := make(Grid, height)
	for y := range g {
		row := make([]Cell, width)
		for x := range row {
			row[x] = c
		}
		g[y] = row
	}
	return g
}

// oddBelow 在 [1, n-1) 中均匀取一个奇数
func oddBelow(rng *rand.Rand, n int) int {
	return 1 + 2*rng.IntN((n-1)/2)
}

func carve(g Grid, p Point, rng *rand.Rand) {
	g[p.Y][p.X] = Open
	dirs := directions
	rng.Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })
	for _, d := range dirs {
		next := Point{X: p.X + 2*d.X, Y: p.Y + 2*d.Y}
		if !g.InBounds(next) || g[next.Y][next.X] != Wall {
			continue
		}
		g[p.Y+d.Y][p.X+d.X] = Open
		carve(g, next, rng)
	}
}

// pickExit 优先在靠近边界、且紧挨墙的可走格子（frontier）中选出口
func pickExit(g Grid, rng *rand.Rand) Point {
	open := g.OpenCells()
	var frontier []Point
	for _, p := range open {
		if nearEdge(g, p) && touchesWall(g, p) {
			frontier = append(frontier, p)
		}
	}
	if len(frontier) > 0 {
		return frontier[rng.IntN(len(frontier))]
	}
	return open[rng.IntN(len(open))]
}

func nearEdge(g Grid, p Point) bool {
	return p.X <= 1 || p.Y <= 1 || p.X >= g.Width()-2 || p.Y >= g.Height()-2
}

func touchesWall(g Grid, p Point) bool {
	for _, d := range directions {
		n := Point{X: p.X + d.X, Y: p.Y + d.Y}
		if g.InBounds(n) && g[n.Y][n.X] == Wall {
			return true
		}
	}
	return false
}

// placeCoins 在除出口外的可走格子中无放回均匀抽样
func placeCoins(g Grid, exit Point, rng *rand.Rand) []Point {
	candidates := make([]Point, 0, g.Width()*g.Height())
	for _, p := range g.OpenCells() {
		if p != exit {
			candidates = append(candidates, p)
		}
	}
	n := min(CoinCount(g.Width(), g.Height()), len(candidates))
	// 部分 Fisher-Yates：前 n 个即为样本
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	coins := make([]Point, n)
	copy(coins, candidates[:n])
	return coins
}

func contains(points []Point, p Point) bool {
	for _, q := range points {
		if q == p {
			return true
		}
	}
	return false
}
