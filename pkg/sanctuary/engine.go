// Package sanctuary 实现动物园网格的放置与时间窗口视图布局引擎
//
// 引擎负责：
//   - 网格占用模型（可自动扩张的正方形网格）
//   - 实体注册表（动物和墓碑）
//   - 随机放置与网格扩张
//   - 时间窗口过滤（今天/本周/本月/今年/全部）
//   - 视图切换时的布局重排
//
// 引擎是单线程的：所有修改都通过 RequestUnlock 和 CurrentFilterChanged 同步完成，
// 并发访问由上层的 game.SanctuaryService 串行化。
package sanctuary

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"
)

// LegacyRestoreAgeDays 没有日期记录的恢复动物被视为多少天前孵化
const LegacyRestoreAgeDays = 7

// Catalog 外部目录，用于判断实体ID能否解析为可生成的预制体
type Catalog interface {
	Resolve(id string, category Category) bool
}

// CatalogFunc 将普通函数适配为 Catalog
type CatalogFunc func(id string, category Category) bool

// Resolve 实现 Catalog 接口
func (f CatalogFunc) Resolve(id string, category Category) bool {
	return f(id, category)
}

// Clock 注入的时钟，便于测试
type Clock func() time.Time

// Options 引擎配置
type Options struct {
	MinGridSize          int
	ReflowSlack          int
	MaxPlacementAttempts int
	Catalog              Catalog // 为 nil 时所有ID都可解析
	Clock                Clock   // 为 nil 时使用 time.Now
	Rand                 *rand.Rand
}

// UnlockRequest 一次解锁请求（用于批量恢复）
type UnlockRequest struct {
	ID        string
	Category  Category
	CreatedAt time.Time
	Fresh     bool
}

// RestoreReport 批量恢复的统计
type RestoreReport struct {
	Placed     int
	Duplicates int
	Unknown    int
	Failed     int
}

// EntityView 活跃实体的只读视图
type EntityView struct {
	ID        string
	Category  Category
	Cell      Cell
	CreatedAt time.Time
	Fresh     bool
}

// Layout 当前布局快照
type Layout struct {
	View     ViewWindow
	GridSize int
	Min, Max Cell
	Total    int          // 注册表中的实体总数
	Entities []EntityView // 活跃实体，按注册顺序
}

// Engine 网格放置与视图布局引擎
type Engine struct {
	grid      *Grid
	registry  *Registry
	originals map[string]Cell // 实体首次放置的格子（全部视图布局）
	layoutCap int             // 全部视图布局的网格边长
	view      ViewWindow

	allocator *Allocator
	planner   *Planner
	catalog   Catalog
	clock     Clock
}

// NewEngine 创建引擎，初始网格为 MinGridSize 且已铺满草地
func NewEngine(opts Options) *Engine {
	if opts.MinGridSize <= 0 {
		opts.MinGridSize = MinGridSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	grid := NewGrid(opts.MinGridSize)
	grid.Fill()

	return &Engine{
		grid:      grid,
		registry:  NewRegistry(),
		originals: make(map[string]Cell),
		layoutCap: grid.Size(),
		view:      ViewAll,
		allocator: NewAllocator(opts.MaxPlacementAttempts, opts.Rand),
		planner:   NewPlanner(opts.MinGridSize, opts.ReflowSlack, opts.Rand),
		catalog:   opts.Catalog,
		clock:     opts.Clock,
	}
}

// Now 返回注入时钟的当前时间
func (e *Engine) Now() time.Time {
	return e.clock()
}

// View 返回当前视图
func (e *Engine) View() ViewWindow {
	return e.view
}

// GridSize 返回当前网格边长
func (e *Engine) GridSize() int {
	return e.grid.Size()
}

// Grid 返回网格（只读使用）
func (e *Engine) Grid() *Grid {
	return e.grid
}

// Entities 按注册顺序返回所有实体
func (e *Engine) Entities() []Entity {
	return e.registry.All()
}

// Exists 检查实体是否已注册
func (e *Engine) Exists(id string) bool {
	return e.registry.Exists(id)
}

// OriginalCell 返回实体首次放置的格子
func (e *Engine) OriginalCell(id string) (Cell, bool) {
	c, ok := e.originals[id]
	return c, ok
}

// RequestUnlock 解锁并放置一个实体
//
// 参数：
//   - id: 实体ID（动物名称或墓碑令牌）
//   - category: 实体类别
//   - createdAt: 持久化的创建日期，零值表示没有记录
//   - fresh: 是否在本次进程中新解锁（为 true 时日期记为今天）
//
// 返回：
//   - Placement: 放置结果，Cell 为当前显示的格子，Original 为全部视图下的格子；
//     已存在的实体返回 Duplicate=true
//   - error: ErrUnknownIdentity 或 ErrPlacementExhausted（已包装）
func (e *Engine) RequestUnlock(id string, category Category, createdAt time.Time, fresh bool) (Placement, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Placement{}, fmt.Errorf("%w: empty id", ErrUnknownIdentity)
	}
	if e.registry.Exists(id) {
		return e.locate(id, Placement{Duplicate: true}), nil
	}
	if e.catalog != nil && !e.catalog.Resolve(id, category) {
		return Placement{}, fmt.Errorf("%w: %s %q", ErrUnknownIdentity, category, id)
	}

	date := e.stampDate(createdAt, fresh)

	var (
		p   Placement
		err error
	)
	if e.view == ViewAll {
		p, err = e.allocator.Place(e.grid, e.registry, id, category, date, fresh)
		if err == nil {
			e.layoutCap = e.grid.Size()
		}
	} else {
		p, err = e.placeInLayout(id, category, date, fresh)
	}
	if err != nil {
		log.Printf("[Sanctuary] Failed to place %s %s: %v", category, id, err)
		return p, err
	}

	e.originals[id] = p.Cell
	p = e.locate(id, p)
	log.Printf("[Sanctuary] Placed %s: %s at %v (layout %v, grid %dx%d)", category, id, p.Cell, p.Original, e.grid.Size(), e.grid.Size())
	return p, nil
}

// locate 用实体当前的显示格子填充放置结果
func (e *Engine) locate(id string, p Placement) Placement {
	p.Original = e.originals[id]
	p.Cell = p.Original
	p.Visible = false
	if ent, ok := e.registry.Get(id); ok && ent.Active {
		p.Cell = ent.Cell
		p.Visible = true
	}
	return p
}

// placeInLayout 在受限视图下放置实体
//
// 新实体的格子在全部视图布局中分配（与其他实体的原始格子不冲突），
// 然后重新执行当前视图的重排，使其在可见时出现在紧凑网格上。
func (e *Engine) placeInLayout(id string, category Category, date time.Time, fresh bool) (Placement, error) {
	layout := NewGrid(e.layoutCap)
	layout.Fill()

	taken := make(map[Cell]bool, len(e.originals))
	for _, c := range e.originals {
		taken[c] = true
	}

	p, err := e.allocator.Allocate(layout, OccupancyFunc(func(c Cell) bool { return taken[c] }))
	if err != nil {
		return p, err
	}

	if err := e.registry.Add(Entity{
		ID:        id,
		Category:  category,
		Cell:      p.Cell,
		CreatedAt: date,
		Fresh:     fresh,
	}); err != nil {
		return Placement{}, err
	}
	e.layoutCap = layout.Size()
	e.originals[id] = p.Cell

	e.planner.Reflow(e.grid, e.registry, e.originals, e.view, e.Now())
	return p, nil
}

// stampDate 计算实体的创建日期
func (e *Engine) stampDate(createdAt time.Time, fresh bool) time.Time {
	today := Today(e.Now())
	if fresh {
		return today
	}
	if createdAt.IsZero() {
		return today.AddDate(0, 0, -LegacyRestoreAgeDays)
	}
	return Today(createdAt)
}

// CurrentFilterChanged 切换视图并重排布局
//
// 返回：
//   - ReflowResult: 重排结果
//   - bool: 视图未变化时为 false（空操作）
func (e *Engine) CurrentFilterChanged(w ViewWindow) (ReflowResult, bool) {
	if w == e.view {
		return ReflowResult{Window: w, GridSize: e.grid.Size()}, false
	}
	e.view = w
	result := e.planner.Reflow(e.grid, e.registry, e.originals, w, e.Now())
	log.Printf("[Sanctuary] View changed to %s: %d/%d visible, grid %dx%d",
		w, result.Placed, e.registry.Len(), result.GridSize, result.GridSize)
	return result, true
}

// Refresh 重新执行当前视图的重排（例如跨越午夜后）
func (e *Engine) Refresh() ReflowResult {
	return e.planner.Reflow(e.grid, e.registry, e.originals, e.view, e.Now())
}

// RestoreBatch 依次重放持久化的解锁请求
// 无法解析或无法放置的实体会被跳过，不影响其余实体
func (e *Engine) RestoreBatch(reqs []UnlockRequest) RestoreReport {
	var report RestoreReport
	for _, req := range reqs {
		p, err := e.RequestUnlock(req.ID, req.Category, req.CreatedAt, req.Fresh)
		switch {
		case err == nil && p.Duplicate:
			report.Duplicates++
		case err == nil:
			report.Placed++
		case isUnknown(err):
			report.Unknown++
		default:
			report.Failed++
		}
	}
	return report
}

// Snapshot 返回当前布局快照
func (e *Engine) Snapshot() Layout {
	lo, hi := e.grid.Bounds()
	active := e.registry.AllActive()
	views := make([]EntityView, 0, len(active))
	for _, ent := range active {
		views = append(views, EntityView{
			ID:        ent.ID,
			Category:  ent.Category,
			Cell:      ent.Cell,
			CreatedAt: ent.CreatedAt,
			Fresh:     ent.Fresh,
		})
	}
	return Layout{
		View:     e.view,
		GridSize: e.grid.Size(),
		Min:      lo,
		Max:      hi,
		Total:    e.registry.Len(),
		Entities: views,
	}
}
