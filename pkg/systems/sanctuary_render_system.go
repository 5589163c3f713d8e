package systems

import (
	"image"
	"image/color"
	"log"
	"sort"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/decker502/sanctuary/pkg/components"
	"github.com/decker502/sanctuary/pkg/ecs"
	"github.com/decker502/sanctuary/pkg/sanctuary"
	"github.com/decker502/sanctuary/pkg/utils"
)

var (
	tileLightColor = color.RGBA{R: 118, G: 178, B: 92, A: 255}
	tileDarkColor  = color.RGBA{R: 104, G: 162, B: 80, A: 255}
	tileEdgeColor  = color.RGBA{R: 70, G: 120, B: 56, A: 255}
	shadowColor    = color.RGBA{A: 70}
	outlineColor   = color.RGBA{A: 160}
	freshColor     = color.RGBA{R: 255, G: 245, B: 200, A: 255}
)

// labelMinScale 缩放低于该值时不显示实体名称
const labelMinScale = 0.6

// maxBatchVertices DrawTriangles 单批次的顶点上限（uint16 索引）
const maxBatchVertices = 65532

// whiteSubImage 纯白贴图，用于 DrawTriangles 绘制纯色多边形
var (
	whiteOnce     sync.Once
	whiteSubImage *ebiten.Image
)

func solidSource() *ebiten.Image {
	whiteOnce.Do(func() {
		img := ebiten.NewImage(3, 3)
		img.Fill(color.White)
		whiteSubImage = img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	})
	return whiteSubImage
}

// SanctuaryRenderSystem 绘制保护区网格和实体
//
// 职责：
//   - Sync: 将布局快照同步为 ECS 实体（新增、移动、删除）
//   - Draw: 先绘制所有地块，再按排序键升序绘制实体（远处先画）
type SanctuaryRenderSystem struct {
	entityManager *ecs.EntityManager
	projection    utils.IsoProjection
	byID          map[string]ecs.EntityID

	vertices []ebiten.Vertex
	indices  []uint16
}

// NewSanctuaryRenderSystem 创建渲染系统
func NewSanctuaryRenderSystem(em *ecs.EntityManager, projection utils.IsoProjection) *SanctuaryRenderSystem {
	return &SanctuaryRenderSystem{
		entityManager: em,
		projection:    projection,
		byID:          make(map[string]ecs.EntityID),
		vertices:      make([]ebiten.Vertex, 0, 1024),
		indices:       make([]uint16, 0, 1536),
	}
}

// Sync 让 ECS 中的实体与可见实体列表一致
//
// 参数：
//   - visible: 当前布局中的可见实体，SortKey 和位置由本系统重新计算
func (s *SanctuaryRenderSystem) Sync(visible []components.SanctuaryEntityComponent) {
	seen := make(map[string]bool, len(visible))
	for _, v := range visible {
		seen[v.ID] = true
		v.SortKey = utils.SortKey(v.Cell.X, v.Cell.Y)
		pos := s.projection.EntityPosition(v.Cell.X, v.Cell.Y)

		id, ok := s.byID[v.ID]
		if !ok {
			id = s.entityManager.CreateEntity()
			s.byID[v.ID] = id
			ecs.AddComponent(s.entityManager, id, &components.PositionComponent{})
			ecs.AddComponent(s.entityManager, id, &components.SanctuaryEntityComponent{})
		}
		if p, ok := ecs.GetComponent[*components.PositionComponent](s.entityManager, id); ok {
			p.X, p.Y = pos.X, pos.Y
		}
		if c, ok := ecs.GetComponent[*components.SanctuaryEntityComponent](s.entityManager, id); ok {
			*c = v
		}
	}

	removed := 0
	for key, id := range s.byID {
		if !seen[key] {
			s.entityManager.DestroyEntity(id)
			delete(s.byID, key)
			removed++
		}
	}
	if removed > 0 {
		s.entityManager.RemoveMarkedEntities()
	}
}

// EntityManager 返回渲染系统使用的实体管理器
func (s *SanctuaryRenderSystem) EntityManager() *ecs.EntityManager {
	return s.entityManager
}

// EntityFor 返回收集物对应的 ECS 实体
func (s *SanctuaryRenderSystem) EntityFor(id string) (ecs.EntityID, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// DrawOrder 返回按绘制顺序排列的实体
// 排序键相同时按收集物ID排序，保证每帧顺序稳定
func (s *SanctuaryRenderSystem) DrawOrder() []ecs.EntityID {
	ids := ecs.GetEntitiesWith2[*components.PositionComponent, *components.SanctuaryEntityComponent](s.entityManager)
	sort.SliceStable(ids, func(i, j int) bool {
		a, _ := ecs.GetComponent[*components.SanctuaryEntityComponent](s.entityManager, ids[i])
		b, _ := ecs.GetComponent[*components.SanctuaryEntityComponent](s.entityManager, ids[j])
		if a.SortKey != b.SortKey {
			return a.SortKey < b.SortKey
		}
		return a.ID < b.ID
	})
	return ids
}

// Draw 绘制网格和实体
//
// 参数：
//   - screen: 绘制目标
//   - tr: 世界坐标到屏幕坐标的变换（由视口决定）
//   - lo, hi: 网格的格子坐标范围
func (s *SanctuaryRenderSystem) Draw(screen *ebiten.Image, tr utils.ScreenTransform, lo, hi int) {
	s.drawTiles(screen, tr, lo, hi)

	for _, id := range s.DrawOrder() {
		pos, _ := ecs.GetComponent[*components.PositionComponent](s.entityManager, id)
		ent, _ := ecs.GetComponent[*components.SanctuaryEntityComponent](s.entityManager, id)
		s.drawEntity(screen, tr, pos, ent)
	}
}

// drawTiles 批量绘制菱形地块，每个地块两个三角形
func (s *SanctuaryRenderSystem) drawTiles(screen *ebiten.Image, tr utils.ScreenTransform, lo, hi int) {
	s.vertices = s.vertices[:0]
	s.indices = s.indices[:0]

	tiles := utils.TilesInDrawOrder(lo, hi)
	for _, c := range tiles {
		if len(s.vertices)+4 > maxBatchVertices {
			s.flushTiles(screen)
		}
		clr := tileDarkColor
		if (c[0]+c[1])%2 == 0 {
			clr = tileLightColor
		}
		r, g, b, a := float32(clr.R)/255, float32(clr.G)/255, float32(clr.B)/255, float32(clr.A)/255

		base := uint16(len(s.vertices))
		for _, pt := range s.projection.TileCorners(c[0], c[1]) {
			x, y := tr.ToScreen(pt)
			s.vertices = append(s.vertices, ebiten.Vertex{
				DstX: float32(x), DstY: float32(y),
				SrcX: 1, SrcY: 1,
				ColorR: r, ColorG: g, ColorB: b, ColorA: a,
			})
		}
		s.indices = append(s.indices, base, base+1, base+2, base, base+2, base+3)
	}
	s.flushTiles(screen)

	// 地块边线
	for _, c := range tiles {
		corners := s.projection.TileCorners(c[0], c[1])
		for i := range corners {
			x0, y0 := tr.ToScreen(corners[i])
			x1, y1 := tr.ToScreen(corners[(i+1)%4])
			vector.StrokeLine(screen, float32(x0), float32(y0), float32(x1), float32(y1), 1, tileEdgeColor, true)
		}
	}
}

func (s *SanctuaryRenderSystem) flushTiles(screen *ebiten.Image) {
	if len(s.indices) == 0 {
		return
	}
	screen.DrawTriangles(s.vertices, s.indices, solidSource(), &ebiten.DrawTrianglesOptions{})
	s.vertices = s.vertices[:0]
	s.indices = s.indices[:0]
}

func (s *SanctuaryRenderSystem) drawEntity(screen *ebiten.Image, tr utils.ScreenTransform, pos *components.PositionComponent, ent *components.SanctuaryEntityComponent) {
	if pos == nil || ent == nil {
		log.Printf("[SanctuaryRenderSystem] Warning: entity without position or sanctuary component")
		return
	}
	x, y := tr.ToScreen(utils.Vec2{X: pos.X, Y: pos.Y})
	_, groundY := tr.ToScreen(utils.Vec2{X: pos.X, Y: pos.Y + s.projection.EntityYOffset})
	r := float32(s.projection.TileHeight * 0.35 * tr.Scale)
	fx, fy := float32(x), float32(y)

	// 阴影
	vector.DrawFilledRect(screen, fx-r, float32(groundY)-r/4, 2*r, r/2, shadowColor, true)

	edge := outlineColor
	width := float32(1)
	if ent.Fresh {
		edge = freshColor
		width = 2
	}

	if ent.Category == sanctuary.CategoryMarker {
		w, h := r*1.2, r*1.6
		vector.DrawFilledRect(screen, fx-w/2, fy-h/2, w, h, ent.Color, true)
		vector.StrokeRect(screen, fx-w/2, fy-h/2, w, h, width, edge, true)
	} else {
		vector.DrawFilledCircle(screen, fx, fy, r, ent.Color, true)
		vector.StrokeCircle(screen, fx, fy, r, width, edge, true)
	}

	if tr.Scale >= labelMinScale && ent.Category == sanctuary.CategoryAnimal {
		ebitenutil.DebugPrintAt(screen, ent.ID, int(x-float64(r)), int(y+float64(r)))
	}
}
