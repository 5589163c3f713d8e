package sanctuary

import (
	"log"
	"math/rand"
	"time"
)

// DefaultReflowSlack 重排时额外预留的格子数
const DefaultReflowSlack = 1

// ReflowResult 一次重排的结果
type ReflowResult struct {
	Window   ViewWindow
	GridSize int
	Visible  int // 窗口内可见的实体数
	Placed   int // 实际激活的实体数
}

// Planner 视图切换时的布局重排器
//
// 受限视图使用一个刚好容纳可见实体的紧凑网格，
// 避免旧的稀疏布局在过大的网格上显得零散。
type Planner struct {
	MinSize int
	Slack   int

	rng *rand.Rand
}

// NewPlanner 创建重排器
//
// 参数：
//   - minSize: 最小网格边长，<= 0 时使用 MinGridSize
//   - slack: 面积预留，< 0 时使用 DefaultReflowSlack
//   - rng: 随机数源，为 nil 时使用基于当前时间的随机源
func NewPlanner(minSize, slack int, rng *rand.Rand) *Planner {
	if minSize <= 0 {
		minSize = MinGridSize
	}
	if slack < 0 {
		slack = DefaultReflowSlack
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{MinSize: minSize, Slack: slack, rng: rng}
}

// SizeFor 返回满足 s*s >= n+Slack 的最小边长 s（不小于 MinSize）
func (p *Planner) SizeFor(n int) int {
	s := p.MinSize
	for s*s < n+p.Slack {
		s++
	}
	return s
}

// Reflow 按视图重新计算网格尺寸并重新分配实体格子
//
// ViewAll 精确恢复每个实体首次放置的格子；受限视图把可见实体
// 按注册顺序放到洗牌后的草地格子上，其余实体保持非活跃。
// 重排不会失败，网格边长始终 >= MinSize。
func (p *Planner) Reflow(g *Grid, reg *Registry, originals map[string]Cell, w ViewWindow, now time.Time) ReflowResult {
	if w == ViewAll {
		return p.restoreAll(g, reg, originals)
	}

	reg.DeactivateAll()
	ids := VisibleIDs(reg, w, now)
	result := ReflowResult{Window: w, Visible: len(ids)}

	if len(ids) == 0 {
		g.SetSize(p.MinSize)
		g.Clear()
		g.Fill()
		result.GridSize = g.Size()
		return result
	}

	g.SetSize(p.SizeFor(len(ids)))
	g.Clear()
	g.Fill()

	cells := g.GroundCells()
	p.rng.Shuffle(len(cells), func(i, j int) {
		cells[i], cells[j] = cells[j], cells[i]
	})

	for i, id := range ids {
		if err := reg.SetActive(id, cells[i], true); err != nil {
			log.Printf("[Reflow] Warning: failed to activate %s: %v", id, err)
			continue
		}
		result.Placed++
	}
	result.GridSize = g.Size()
	return result
}

// restoreAll 恢复全部实体的原始布局
func (p *Planner) restoreAll(g *Grid, reg *Registry, originals map[string]Cell) ReflowResult {
	reg.DeactivateAll()
	result := ReflowResult{Window: ViewAll, Visible: reg.Len()}

	g.SetSize(p.SizeFor(reg.Len()))
	for _, c := range originals {
		for !g.IsInBounds(c) {
			g.Grow()
		}
	}
	g.Clear()
	g.Fill()

	for _, e := range reg.All() {
		cell, ok := originals[e.ID]
		if !ok {
			log.Printf("[Reflow] Warning: no original position for %s", e.ID)
			continue
		}
		if err := reg.SetActive(e.ID, cell, true); err != nil {
			log.Printf("[Reflow] Warning: failed to restore %s: %v", e.ID, err)
			continue
		}
		result.Placed++
	}
	result.GridSize = g.Size()
	return result
}
