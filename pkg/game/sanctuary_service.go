package game

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/decker502/sanctuary/pkg/config"
	"github.com/decker502/sanctuary/pkg/ecs"
	"github.com/decker502/sanctuary/pkg/metrics"
	"github.com/decker502/sanctuary/pkg/sanctuary"
	"github.com/decker502/sanctuary/pkg/systems"
	"github.com/decker502/sanctuary/pkg/utils"
)

// GravePrefix 墓碑ID前缀
const GravePrefix = "grave_"

// ErrAllAnimalsUnlocked 目录中所有动物都已解锁，无法再孵化
var ErrAllAnimalsUnlocked = errors.New("all catalog animals are unlocked")

// EntityState 布局中一个可见实体的状态
type EntityState struct {
	ID       string         `json:"id"`
	Category string         `json:"category"`
	Cell     sanctuary.Cell `json:"cell"`
	SortKey  int            `json:"sortKey"`
	World    utils.Vec2     `json:"world"`
	Date     string         `json:"date"`
	Fresh    bool           `json:"fresh"`
}

// LayoutState 当前布局的快照，实体按绘制顺序排列
type LayoutState struct {
	View           string         `json:"view"`
	GridSize       int            `json:"gridSize"`
	Min            sanctuary.Cell `json:"min"`
	Max            sanctuary.Cell `json:"max"`
	Total          int            `json:"total"`
	Entities       []EntityState  `json:"entities"`
	ViewportTarget float64        `json:"viewportTarget"`
}

// StatsState 孵化统计
type StatsState struct {
	Daily    int `json:"daily"`
	Weekly   int `json:"weekly"`
	Monthly  int `json:"monthly"`
	Yearly   int `json:"yearly"`
	Unlocked int `json:"unlocked"`
	Locked   int `json:"locked"`
	Graves   int `json:"graves"`
}

// LayoutListener 布局变化回调，在服务锁释放后调用
type LayoutListener func(LayoutState)

// ServiceOptions 服务依赖
type ServiceOptions struct {
	Config  *config.SanctuaryConfig // 为 nil 时使用默认配置
	Catalog *config.Catalog         // 为 nil 时所有ID都可解析，且无法随机孵化
	State   *GameState              // 为 nil 时使用内存状态
	Clock   sanctuary.Clock         // 为 nil 时使用 time.Now
	Rand    *rand.Rand
}

// SanctuaryService 保护区服务
//
// 职责：
//   - 持有布局引擎、存档、孵化统计和视口系统
//   - 串行化查看器主循环和 HTTP 请求的所有调用
//   - 每次修改后持久化、更新指标并通知监听者
type SanctuaryService struct {
	mu sync.Mutex

	engine     *sanctuary.Engine
	catalog    *config.Catalog
	saves      *SaveManager
	settings   *SettingsManager
	stats      *HatchStats
	viewport   *systems.ViewportSystem
	projection utils.IsoProjection
	padding    float64
	clock      sanctuary.Clock
	rng        *rand.Rand

	listeners  map[int]LayoutListener
	nextListen int
}

// NewSanctuaryService 创建服务
// 创建后需调用 Restore 恢复持久化的布局
func NewSanctuaryService(opts ServiceOptions) *SanctuaryService {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultSanctuaryConfig()
	}
	state := opts.State
	if state == nil {
		state = NewGameStateWithManager(nil)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var resolver sanctuary.Catalog
	if opts.Catalog != nil {
		resolver = opts.Catalog
	}
	engine := sanctuary.NewEngine(sanctuary.Options{
		MinGridSize:          cfg.Grid.MinSize,
		ReflowSlack:          cfg.Grid.ReflowSlack,
		MaxPlacementAttempts: cfg.Placement.MaxAttempts,
		Catalog:              resolver,
		Clock:                clock,
		Rand:                 rng,
	})

	saves := state.GetSaveManager()
	s := &SanctuaryService{
		engine:   engine,
		catalog:  opts.Catalog,
		saves:    saves,
		settings: state.GetSettingsManager(),
		stats:    NewHatchStats(saves.GetHatchCounts()),
		viewport: systems.NewViewportSystem(ecs.NewEntityManager(), cfg.Viewport),
		projection: utils.IsoProjection{
			TileWidth:     cfg.Isometric.TileWidth,
			TileHeight:    cfg.Isometric.TileHeight,
			EntityYOffset: cfg.Isometric.EntityYOffset,
		},
		padding:   cfg.Viewport.Padding,
		clock:     clock,
		rng:       rng,
		listeners: make(map[int]LayoutListener),
	}
	s.retargetLocked()
	s.viewport.Snap()
	return s
}

// Restore 从存档恢复布局
//
// 顺序：
//  1. 待处理的动物加入解锁列表和新孵化列表，并记录一次孵化
//  2. 依次放置所有解锁的动物和墓碑
//  3. 应用上次选择的视图
func (s *SanctuaryService) Restore() sanctuary.RestoreReport {
	s.mu.Lock()

	now := s.clock()
	today := sanctuary.Today(now)

	// 已经解锁过的待处理动物不算新孵化
	pending := s.saves.TakePendingAnimal()
	if pending != "" {
		log.Printf("[Sanctuary] Processing pending animal: %s", pending)
		if s.saves.UnlockAnimal(pending) {
			s.saves.MarkNewlyHatched(pending)
		} else {
			pending = ""
		}
	}

	var reqs []sanctuary.UnlockRequest
	for _, id := range s.saves.GetUnlockedAnimals() {
		req := sanctuary.UnlockRequest{ID: id, Category: sanctuary.CategoryAnimal}
		if id == pending {
			req.Fresh = true
		} else if d, ok := s.saves.AnimalDate(id, now.Location()); ok {
			req.CreatedAt = d
		} else if s.saves.IsNewlyHatched(id) {
			req.CreatedAt = today
		}
		reqs = append(reqs, req)
	}
	for _, g := range s.saves.GetGraves() {
		date, err := time.ParseInLocation(sanctuary.DateLayout, g.Date, now.Location())
		if err != nil {
			date = today
		}
		reqs = append(reqs, sanctuary.UnlockRequest{ID: g.ID, Category: sanctuary.CategoryMarker, CreatedAt: date})
	}

	report := s.engine.RestoreBatch(reqs)

	for _, ent := range s.engine.Entities() {
		if ent.Category == sanctuary.CategoryAnimal {
			s.saves.SetAnimalDate(ent.ID, ent.CreatedAt)
		}
	}
	if pending != "" && s.engine.Exists(pending) {
		s.recordHatchLocked(now)
	}

	if s.settings != nil {
		if res, changed := s.engine.CurrentFilterChanged(s.settings.LastView()); changed {
			metrics.RecordReflow(res.Window.String())
		}
	}

	s.persistLocked()
	s.retargetLocked()
	s.viewport.Snap()
	log.Printf("[Sanctuary] Restored %d entities (%d duplicates, %d unknown, %d failed)",
		report.Placed, report.Duplicates, report.Unknown, report.Failed)

	s.unlockAndNotify()
	return report
}

// UnlockAnimal 孵化（解锁）一只动物并放置到网格上
//
// 返回：
//   - sanctuary.Placement: 放置结果；已解锁的动物返回 Duplicate=true
//   - error: 动物不在目录中，或网格无法扩张
func (s *SanctuaryService) UnlockAnimal(id string) (sanctuary.Placement, error) {
	s.mu.Lock()
	p, err := s.unlockAnimalLocked(id)
	if err != nil || p.Duplicate {
		s.mu.Unlock()
		return p, err
	}
	s.unlockAndNotify()
	return p, nil
}

// HatchRandom 从尚未解锁的动物中随机孵化一只
// 选择和解锁在同一次加锁内完成，并发的解锁请求不会让选中的动物变成重复
func (s *SanctuaryService) HatchRandom() (string, sanctuary.Placement, error) {
	s.mu.Lock()
	locked := s.lockedAnimalsLocked()
	if len(locked) == 0 {
		s.mu.Unlock()
		return "", sanctuary.Placement{}, ErrAllAnimalsUnlocked
	}
	id := locked[s.rng.Intn(len(locked))]

	p, err := s.unlockAnimalLocked(id)
	if err != nil {
		s.mu.Unlock()
		return id, p, err
	}
	s.unlockAndNotify()
	return id, p, nil
}

// unlockAnimalLocked 放置一只新孵化的动物并记录存档和孵化次数，调用方持有锁
func (s *SanctuaryService) unlockAnimalLocked(id string) (sanctuary.Placement, error) {
	p, err := s.engine.RequestUnlock(id, sanctuary.CategoryAnimal, time.Time{}, true)
	if err != nil || p.Duplicate {
		s.recordFailure(p, err)
		return p, err
	}

	now := s.clock()
	s.saves.UnlockAnimal(id)
	s.saves.SetAnimalDate(id, sanctuary.Today(now))
	s.saves.MarkNewlyHatched(id)
	s.recordHatchLocked(now)
	s.afterPlacementLocked(sanctuary.CategoryAnimal, p)
	return p, nil
}

// SetPendingAnimal 记录一只待处理的动物，下次 Restore 时放置
func (s *SanctuaryService) SetPendingAnimal(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog != nil && !s.catalog.Resolve(id, sanctuary.CategoryAnimal) {
		return fmt.Errorf("%w: pending animal %q", sanctuary.ErrUnknownIdentity, id)
	}
	s.saves.SetPendingAnimal(id)
	s.persistLocked()
	return nil
}

// AddGrave 放弃计时时创建一个墓碑
//
// 返回：
//   - string: 墓碑ID（grave_ 前缀加按时间排序的 UUID）
//   - sanctuary.Placement: 放置结果
//   - error: 生成ID失败或网格无法扩张
func (s *SanctuaryService) AddGrave() (string, sanctuary.Placement, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", sanctuary.Placement{}, fmt.Errorf("failed to generate grave id: %w", err)
	}
	id := GravePrefix + u.String()

	s.mu.Lock()
	p, err := s.engine.RequestUnlock(id, sanctuary.CategoryMarker, time.Time{}, true)
	if err != nil {
		s.recordFailure(p, err)
		s.mu.Unlock()
		return id, p, err
	}

	s.saves.AddGrave(id, sanctuary.Today(s.clock()))
	s.afterPlacementLocked(sanctuary.CategoryMarker, p)

	s.unlockAndNotify()
	return id, p, nil
}

// SetView 切换视图
//
// 返回：
//   - sanctuary.ReflowResult: 重排结果
//   - bool: 视图未变化时为 false
func (s *SanctuaryService) SetView(w sanctuary.ViewWindow) (sanctuary.ReflowResult, bool) {
	s.mu.Lock()

	res, changed := s.engine.CurrentFilterChanged(w)
	if !changed {
		s.mu.Unlock()
		return res, false
	}

	metrics.RecordReflow(w.String())
	if s.settings != nil {
		s.settings.SetLastView(w)
		if err := s.settings.Save(); err != nil {
			log.Printf("[Sanctuary] Warning: failed to save settings: %v", err)
		}
	}
	s.retargetLocked()

	s.unlockAndNotify()
	return res, true
}

// Fullscreen 查看器是否以全屏启动
func (s *SanctuaryService) Fullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings != nil && s.settings.GetSettings().Fullscreen
}

// SetFullscreen 记录全屏设置并保存
func (s *SanctuaryService) SetFullscreen(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return
	}
	s.settings.SetFullscreen(enabled)
	if err := s.settings.Save(); err != nil {
		log.Printf("[Sanctuary] Warning: failed to save settings: %v", err)
	}
}

// Refresh 重新执行当前视图的重排（跨越午夜后调用）
func (s *SanctuaryService) Refresh() sanctuary.ReflowResult {
	s.mu.Lock()
	res := s.engine.Refresh()
	metrics.RecordReflow(res.Window.String())
	s.retargetLocked()
	s.unlockAndNotify()
	return res
}

// Now 返回服务时钟的当前时间
func (s *SanctuaryService) Now() time.Time {
	return s.clock()
}

// View 返回当前视图
func (s *SanctuaryService) View() sanctuary.ViewWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.View()
}

// Layout 返回当前布局
func (s *SanctuaryService) Layout() LayoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layoutLocked()
}

// Stats 返回孵化统计
func (s *SanctuaryService) Stats() StatsState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	return StatsState{
		Daily:    s.stats.Daily(now),
		Weekly:   s.stats.Weekly(now),
		Monthly:  s.stats.Monthly(now),
		Yearly:   s.stats.Yearly(now),
		Unlocked: len(s.saves.GetUnlockedAnimals()),
		Locked:   len(s.lockedAnimalsLocked()),
		Graves:   len(s.saves.GetGraves()),
	}
}

// Save 立即保存存档和设置
func (s *SanctuaryService) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.saves.Save(); err != nil {
		errs = append(errs, err)
	}
	if s.settings != nil {
		if err := s.settings.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsUnlocked 实体是否已在网格上登记
func (s *SanctuaryService) IsUnlocked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Exists(id)
}

// Catalog 返回动物目录
func (s *SanctuaryService) Catalog() *config.Catalog {
	return s.catalog
}

// Projection 返回等距投影参数
func (s *SanctuaryService) Projection() utils.IsoProjection {
	return s.projection
}

// Subscribe 注册布局变化监听者
//
// 返回：
//   - func(): 取消注册
func (s *SanctuaryService) Subscribe(fn LayoutListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListen
	s.nextListen++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// UpdateViewport 推进视口平滑缩放，由查看器每帧调用
func (s *SanctuaryService) UpdateViewport(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport.Update(dt)
}

// SetViewportAspect 设置视口宽高比
func (s *SanctuaryService) SetViewportAspect(aspect float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport.SetAspect(aspect)
	s.retargetLocked()
}

// ViewportTargetSize 视口目标半高
func (s *SanctuaryService) ViewportTargetSize() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport.TargetSize()
}

// ViewportCurrentSize 视口当前半高
func (s *SanctuaryService) ViewportCurrentSize() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport.CurrentSize()
}

// ViewportCenter 视口当前中心
func (s *SanctuaryService) ViewportCenter() utils.Vec2 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport.Center()
}

// afterPlacementLocked 放置成功后的持久化、指标和视口更新
func (s *SanctuaryService) afterPlacementLocked(category sanctuary.Category, p sanctuary.Placement) {
	metrics.RecordPlacement(category.String(), p.Growths)
	s.persistLocked()
	s.retargetLocked()
}

// recordFailure 记录未放置的原因
func (s *SanctuaryService) recordFailure(p sanctuary.Placement, err error) {
	switch {
	case err == nil && p.Duplicate:
		metrics.RecordPlacementFailure("duplicate")
	case errors.Is(err, sanctuary.ErrUnknownIdentity):
		metrics.RecordPlacementFailure("unknown")
	case errors.Is(err, sanctuary.ErrPlacementExhausted):
		metrics.RecordPlacementFailure("exhausted")
	}
}

func (s *SanctuaryService) recordHatchLocked(now time.Time) {
	s.stats.Record(now)
	s.saves.SetHatchCounts(s.stats.Records())
	metrics.RecordHatch()
}

// persistLocked 保存存档，失败只记录日志
func (s *SanctuaryService) persistLocked() {
	if err := s.saves.Save(); err != nil {
		log.Printf("[Sanctuary] Warning: failed to save sanctuary: %v", err)
	}
}

// lockedAnimalsLocked 返回目录中尚未解锁的动物（按ID排序）
func (s *SanctuaryService) lockedAnimalsLocked() []string {
	if s.catalog == nil {
		return nil
	}
	var locked []string
	for _, id := range s.catalog.AnimalIDs() {
		if !s.engine.Exists(id) {
			locked = append(locked, id)
		}
	}
	return locked
}

// retargetLocked 根据可见实体重新计算视口目标
func (s *SanctuaryService) retargetLocked() {
	layout := s.engine.Snapshot()
	positions := make([]utils.Vec2, 0, len(layout.Entities))
	for _, e := range layout.Entities {
		positions = append(positions, s.projection.EntityPosition(e.Cell.X, e.Cell.Y))
	}
	s.viewport.SetGridExtents(s.projection.SquareExtents(layout.Min.X, layout.Max.X))
	s.viewport.Retarget(positions, s.padding)
	metrics.UpdateLayout(layout.GridSize, len(layout.Entities), layout.Total)
}

// layoutLocked 构建布局快照，实体按绘制顺序（排序键升序）排列
func (s *SanctuaryService) layoutLocked() LayoutState {
	snap := s.engine.Snapshot()
	entities := make([]EntityState, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		entities = append(entities, EntityState{
			ID:       e.ID,
			Category: e.Category.String(),
			Cell:     e.Cell,
			SortKey:  utils.SortKey(e.Cell.X, e.Cell.Y),
			World:    s.projection.EntityPosition(e.Cell.X, e.Cell.Y),
			Date:     e.CreatedAt.Format(sanctuary.DateLayout),
			Fresh:    e.Fresh,
		})
	}
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].SortKey < entities[j].SortKey
	})

	return LayoutState{
		View:           snap.View.String(),
		GridSize:       snap.GridSize,
		Min:            snap.Min,
		Max:            snap.Max,
		Total:          snap.Total,
		Entities:       entities,
		ViewportTarget: s.viewport.TargetSize(),
	}
}

// unlockAndNotify 在持锁状态下构建快照，释放锁后通知监听者
func (s *SanctuaryService) unlockAndNotify() {
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	layout := s.layoutLocked()
	listeners := make([]LayoutListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(layout)
	}
}
