package scenes

import (
	"errors"
	"fmt"
	"image/color"
	"log"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/decker502/sanctuary/pkg/components"
	"github.com/decker502/sanctuary/pkg/config"
	"github.com/decker502/sanctuary/pkg/ecs"
	"github.com/decker502/sanctuary/pkg/game"
	"github.com/decker502/sanctuary/pkg/sanctuary"
	"github.com/decker502/sanctuary/pkg/systems"
	"github.com/decker502/sanctuary/pkg/utils"
)

var backgroundColor = color.RGBA{R: 24, G: 32, B: 40, A: 255}

// messageDuration HUD 提示的显示时长（秒）
const messageDuration = 3.0

// sceneAction 键盘触发的操作
type sceneAction int

const (
	actionNone sceneAction = iota
	actionViewAll
	actionViewDay
	actionViewWeek
	actionViewMonth
	actionViewYear
	actionHatch
	actionGrave
	actionRefresh
)

// keyBindings 按键与操作的对应关系
var keyBindings = []struct {
	keys   []ebiten.Key
	action sceneAction
}{
	{[]ebiten.Key{ebiten.Key0, ebiten.KeyA}, actionViewAll},
	{[]ebiten.Key{ebiten.Key1, ebiten.KeyD}, actionViewDay},
	{[]ebiten.Key{ebiten.Key2, ebiten.KeyW}, actionViewWeek},
	{[]ebiten.Key{ebiten.Key3, ebiten.KeyM}, actionViewMonth},
	{[]ebiten.Key{ebiten.Key4, ebiten.KeyY}, actionViewYear},
	{[]ebiten.Key{ebiten.KeyH}, actionHatch},
	{[]ebiten.Key{ebiten.KeyG}, actionGrave},
	{[]ebiten.Key{ebiten.KeyR}, actionRefresh},
}

var actionViews = map[sceneAction]sanctuary.ViewWindow{
	actionViewAll:   sanctuary.ViewAll,
	actionViewDay:   sanctuary.ViewDay,
	actionViewWeek:  sanctuary.ViewWeek,
	actionViewMonth: sanctuary.ViewMonth,
	actionViewYear:  sanctuary.ViewYear,
}

// SanctuaryScene 保护区查看器场景
//
// 布局变化可能来自键盘，也可能来自同进程内的 HTTP 接口。
// 监听者只记录最新布局，Update 在主循环中把它同步到渲染系统。
type SanctuaryScene struct {
	service      *game.SanctuaryService
	catalog      *config.Catalog
	renderSystem *systems.SanctuaryRenderSystem
	unsubscribe  func()

	mu      sync.Mutex
	pending *game.LayoutState

	layout  game.LayoutState
	stats   game.StatsState
	today   string
	width   int
	height  int
	message string
	msgTime float64
}

// NewSanctuaryScene 创建场景并同步当前布局
func NewSanctuaryScene(service *game.SanctuaryService, width, height int) *SanctuaryScene {
	s := &SanctuaryScene{
		service:      service,
		catalog:      service.Catalog(),
		renderSystem: systems.NewSanctuaryRenderSystem(ecs.NewEntityManager(), service.Projection()),
		width:        width,
		height:       height,
	}
	s.unsubscribe = service.Subscribe(func(l game.LayoutState) {
		s.mu.Lock()
		s.pending = &l
		s.mu.Unlock()
	})
	s.applyLayout(service.Layout())
	s.stats = service.Stats()
	s.today = sanctuary.Today(service.Now()).Format(sanctuary.DateLayout)
	service.SetViewportAspect(float64(width) / float64(height))
	return s
}

// Update 处理输入、跨日刷新和视口动画
func (s *SanctuaryScene) Update(deltaTime float64) error {
	for _, b := range keyBindings {
		for _, k := range b.keys {
			if inpututil.IsKeyJustPressed(k) {
				s.perform(b.action)
			}
		}
	}

	// 跨越午夜后窗口边界变化，需要重排
	if today := sanctuary.Today(s.service.Now()).Format(sanctuary.DateLayout); today != s.today {
		log.Printf("[SanctuaryScene] Day changed %s -> %s, refreshing layout", s.today, today)
		s.today = today
		s.service.Refresh()
	}

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if pending != nil {
		s.applyLayout(*pending)
		s.stats = s.service.Stats()
	}

	s.service.UpdateViewport(deltaTime)

	if s.msgTime > 0 {
		s.msgTime -= deltaTime
	}
	return nil
}

// perform 执行一个操作，结果通过布局监听者回到场景
func (s *SanctuaryScene) perform(a sceneAction) {
	if w, ok := actionViews[a]; ok {
		if _, changed := s.service.SetView(w); changed {
			s.notify(fmt.Sprintf("View: %s", w))
		}
		return
	}

	switch a {
	case actionHatch:
		id, p, err := s.service.HatchRandom()
		switch {
		case errors.Is(err, game.ErrAllAnimalsUnlocked):
			s.notify("Every animal has hatched")
		case err != nil:
			s.notify(fmt.Sprintf("Hatch failed: %v", err))
		default:
			s.notify(fmt.Sprintf("%s hatched at %v", s.displayName(id), p.Cell))
		}
	case actionGrave:
		if _, p, err := s.service.AddGrave(); err != nil {
			s.notify(fmt.Sprintf("Grave failed: %v", err))
		} else {
			s.notify(fmt.Sprintf("Grave placed at %v", p.Cell))
		}
	case actionRefresh:
		s.service.Refresh()
	}
}

// applyLayout 把布局同步到渲染系统
func (s *SanctuaryScene) applyLayout(l game.LayoutState) {
	s.layout = l
	visible := make([]components.SanctuaryEntityComponent, 0, len(l.Entities))
	for _, e := range l.Entities {
		category := sanctuary.CategoryAnimal
		if e.Category == sanctuary.CategoryMarker.String() {
			category = sanctuary.CategoryMarker
		}
		clr := color.RGBA{R: 128, G: 128, B: 128, A: 255}
		if s.catalog != nil {
			clr = s.catalog.ColorOf(e.ID, category)
		}
		visible = append(visible, components.SanctuaryEntityComponent{
			ID:       e.ID,
			Category: category,
			Cell:     e.Cell,
			Fresh:    e.Fresh,
			Color:    clr,
		})
	}
	s.renderSystem.Sync(visible)
}

func (s *SanctuaryScene) notify(msg string) {
	log.Printf("[SanctuaryScene] %s", msg)
	s.message = msg
	s.msgTime = messageDuration
}

func (s *SanctuaryScene) displayName(id string) string {
	if s.catalog != nil {
		if a, ok := s.catalog.Animal(id); ok {
			return a.Name
		}
	}
	return id
}

// Draw 绘制网格、实体和 HUD
func (s *SanctuaryScene) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	tr := utils.ViewportTransform(s.service.ViewportCurrentSize(), s.service.ViewportCenter(),
		float64(s.width), float64(s.height))
	s.renderSystem.Draw(screen, tr, s.layout.Min.X, s.layout.Max.X)

	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("View: %s   Grid: %dx%d   Showing %d of %d",
		s.layout.View, s.layout.GridSize, s.layout.GridSize, len(s.layout.Entities), s.layout.Total), 10, 10)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Hatched  today %d  week %d  month %d  year %d   Graves %d",
		s.stats.Daily, s.stats.Weekly, s.stats.Monthly, s.stats.Yearly, s.stats.Graves), 10, 26)
	ebitenutil.DebugPrintAt(screen, "[0]All [1]Day [2]Week [3]Month [4]Year  [H]atch [G]rave [R]efresh  [F11]Fullscreen",
		10, s.height-20)
	if s.msgTime > 0 && s.message != "" {
		ebitenutil.DebugPrintAt(screen, s.message, 10, 42)
	}
}

// Resize 窗口尺寸变化时更新视口宽高比
func (s *SanctuaryScene) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.width, s.height = width, height
	s.service.SetViewportAspect(float64(width) / float64(height))
}

// SaveOnExit 实现 game.Saveable
func (s *SanctuaryScene) SaveOnExit() bool {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if err := s.service.Save(); err != nil {
		log.Printf("[SanctuaryScene] Warning: failed to save on exit: %v", err)
		return false
	}
	return true
}
