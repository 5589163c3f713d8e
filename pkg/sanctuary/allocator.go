package sanctuary

import (
	"fmt"
	"log"
	"math/rand"
	"time"
)

// DefaultMaxPlacementAttempts 放置失败时最多扩张网格的次数
const DefaultMaxPlacementAttempts = 10

// Occupancy 格子占用查询
type Occupancy interface {
	IsOccupied(c Cell) bool
}

// OccupancyFunc 将普通函数适配为 Occupancy
type OccupancyFunc func(c Cell) bool

// IsOccupied 实现 Occupancy 接口
func (f OccupancyFunc) IsOccupied(c Cell) bool {
	return f(c)
}

// Placement 一次放置的结果
//
// Engine 返回的 Cell 是实体当前显示的格子；受限视图下经过重排，
// 可能与 Original 不同。实体在当前视图不可见时 Visible 为 false，Cell 等于 Original。
type Placement struct {
	Cell      Cell
	Original  Cell // 全部视图下的格子
	Visible   bool // 实体在当前视图中可见
	Growths   int  // 本次放置触发的网格扩张次数
	Duplicate bool // 实体已存在，本次请求为空操作
}

// Allocator 在网格上为新实体随机选择空闲格子
//
// 空闲格子 = 草地 且 未被占用。所有空闲格子被选中的概率相同，
// 不偏向中心或已有实体附近。
type Allocator struct {
	MaxAttempts int  // 最大扩张次数
	AllowGrowth bool // 为 false 时网格被冻结，耗尽立即报错

	rng *rand.Rand
}

// NewAllocator 创建分配器
//
// 参数：
//   - maxAttempts: 最大扩张次数，<= 0 时使用 DefaultMaxPlacementAttempts
//   - rng: 随机数源，为 nil 时使用基于当前时间的随机源
func NewAllocator(maxAttempts int, rng *rand.Rand) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxPlacementAttempts
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Allocator{
		MaxAttempts: maxAttempts,
		AllowGrowth: true,
		rng:         rng,
	}
}

// FreeCells 按 GroundCells 的确定顺序返回所有未被占用的草地格子
func FreeCells(g *Grid, occ Occupancy) []Cell {
	ground := g.GroundCells()
	free := ground[:0]
	for _, c := range ground {
		if !occ.IsOccupied(c) {
			free = append(free, c)
		}
	}
	return free
}

// Allocate 选择一个空闲格子
//
// 没有空闲格子时，网格边长加 1 并重新铺设草地，然后重试，
// 最多扩张 MaxAttempts 次。
//
// 返回：
//   - Placement: 选中的格子和扩张次数
//   - error: 超过重试上限时返回包装了 ErrPlacementExhausted 的错误
func (a *Allocator) Allocate(g *Grid, occ Occupancy) (Placement, error) {
	growths := 0
	for {
		free := FreeCells(g, occ)
		if len(free) > 0 {
			return Placement{
				Cell:    free[a.rng.Intn(len(free))],
				Growths: growths,
			}, nil
		}

		if !a.AllowGrowth || growths >= a.MaxAttempts {
			return Placement{Growths: growths}, fmt.Errorf("%w: no free cell after %d expansions (grid %dx%d)",
				ErrPlacementExhausted, growths, g.Size(), g.Size())
		}

		g.Grow()
		g.Fill()
		growths++
		log.Printf("[Allocator] Grid expanded to: %dx%d", g.Size(), g.Size())
	}
}

// Place 为实体分配格子并以活跃状态写入注册表
//
// 失败时注册表保持不变。
func (a *Allocator) Place(g *Grid, reg *Registry, id string, category Category, createdAt time.Time, fresh bool) (Placement, error) {
	if reg.Exists(id) {
		return Placement{}, fmt.Errorf("entity %q already registered", id)
	}

	p, err := a.Allocate(g, reg)
	if err != nil {
		return p, err
	}

	if err := reg.Add(Entity{
		ID:        id,
		Category:  category,
		Cell:      p.Cell,
		CreatedAt: createdAt,
		Fresh:     fresh,
		Active:    true,
	}); err != nil {
		return Placement{}, err
	}
	return p, nil
}
