package sanctuary

import "fmt"

// MinGridSize 网格的最小边长（初始 3x3）
const MinGridSize = 3

// Cell 网格上的整数坐标，网格以原点为中心
type Cell struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// String 返回 "(x, y)" 形式的坐标，便于日志输出
func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Tile 格子的地块状态
type Tile uint8

const (
	// TileUnset 未铺设地块
	TileUnset Tile = iota
	// TileGround 可放置实体的草地
	TileGround
)

// Grid 正方形网格的占用模型
//
// 边长为 size 的网格在两个轴上覆盖 [-size/2, -size/2+size) 区间：
//   - size=3 → -1..1
//   - size=4 → -2..1
//
// 较小的正方形总是被较大的正方形包含，因此扩张网格不会让已有草地越界。
type Grid struct {
	size  int
	tiles map[Cell]Tile
}

// NewGrid 创建指定边长的空网格（所有格子为 TileUnset）
//
// 参数：
//   - size: 网格边长，小于 1 时按 1 处理
func NewGrid(size int) *Grid {
	if size < 1 {
		size = 1
	}
	return &Grid{
		size:  size,
		tiles: make(map[Cell]Tile),
	}
}

// Size 返回当前网格边长
func (g *Grid) Size() int {
	return g.size
}

// SetSize 直接设置网格边长（仅由重排和测试使用）
// 不会修改已有地块，调用方需要自行 Clear/Fill
func (g *Grid) SetSize(size int) {
	if size < 1 {
		size = 1
	}
	g.size = size
}

// Grow 将网格边长加 1
func (g *Grid) Grow() {
	g.size++
}

// Bounds 返回当前正方形的闭区间边界（min 与 max 都在网格内）
func (g *Grid) Bounds() (min, max Cell) {
	lo := -g.size / 2
	hi := lo + g.size - 1
	return Cell{X: lo, Y: lo}, Cell{X: hi, Y: hi}
}

// IsInBounds 判断格子是否在当前正方形内
func (g *Grid) IsInBounds(c Cell) bool {
	lo, hi := g.Bounds()
	return c.X >= lo.X && c.X <= hi.X && c.Y >= lo.Y && c.Y <= hi.Y
}

// IsGround 判断格子是否已铺设草地
func (g *Grid) IsGround(c Cell) bool {
	return g.tiles[c] == TileGround
}

// Fill 将当前正方形内所有未铺设的格子设置为草地
// 幂等：已存在的地块不会被覆盖
func (g *Grid) Fill() {
	lo, hi := g.Bounds()
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			c := Cell{X: x, Y: y}
			if g.tiles[c] == TileUnset {
				g.tiles[c] = TileGround
			}
		}
	}
}

// Clear 清空所有地块
func (g *Grid) Clear() {
	g.tiles = make(map[Cell]Tile)
}

// GroundCells 按行优先顺序（x 外层、y 内层，均递增）返回正方形内所有草地格子
func (g *Grid) GroundCells() []Cell {
	lo, hi := g.Bounds()
	cells := make([]Cell, 0, g.size*g.size)
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			c := Cell{X: x, Y: y}
			if g.tiles[c] == TileGround {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

// GroundCount 返回已铺设草地的格子总数（包括正方形外残留的地块）
func (g *Grid) GroundCount() int {
	n := 0
	for _, t := range g.tiles {
		if t == TileGround {
			n++
		}
	}
	return n
}
