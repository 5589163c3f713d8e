package utils

import "math"

// 等距网格默认参数
// 这些常量定义了保护区网格的默认投影，配置文件未指定时使用
const (
	DefaultTileWidth     = 96.0 // 菱形格子宽度
	DefaultTileHeight    = 48.0 // 菱形格子高度
	DefaultEntityYOffset = 18.0 // 实体相对格子中心的抬升高度
)

// Vec2 世界坐标中的二维点
type Vec2 struct {
	X, Y float64
}

// Add 返回两点之和
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// IsoProjection 等距格子坐标到世界坐标的投影
//
// 世界坐标 Y 轴向下（与屏幕一致）。x+y 越大的格子越靠后，
// 在屏幕上位置越高，因此绘制顺序由 SortKey 决定。
type IsoProjection struct {
	TileWidth     float64
	TileHeight    float64
	EntityYOffset float64
}

// DefaultIsoProjection 返回默认投影
func DefaultIsoProjection() IsoProjection {
	return IsoProjection{
		TileWidth:     DefaultTileWidth,
		TileHeight:    DefaultTileHeight,
		EntityYOffset: DefaultEntityYOffset,
	}
}

// CellToWorld 将格子坐标转换为格子中心的世界坐标
// 参数:
//   - x, y: 格子坐标（可以为负）
//
// 返回:
//   - 格子中心的世界坐标
func (p IsoProjection) CellToWorld(x, y int) Vec2 {
	return Vec2{
		X: float64(x-y) * p.TileWidth / 2,
		Y: -float64(x+y) * p.TileHeight / 2,
	}
}

// EntityPosition 返回站在格子上的实体的世界坐标（向上抬升 EntityYOffset）
func (p IsoProjection) EntityPosition(x, y int) Vec2 {
	c := p.CellToWorld(x, y)
	c.Y -= p.EntityYOffset
	return c
}

// TileCorners 返回格子菱形的四个顶点（上、右、下、左）
func (p IsoProjection) TileCorners(x, y int) [4]Vec2 {
	c := p.CellToWorld(x, y)
	hw, hh := p.TileWidth/2, p.TileHeight/2
	return [4]Vec2{
		{X: c.X, Y: c.Y - hh},
		{X: c.X + hw, Y: c.Y},
		{X: c.X, Y: c.Y + hh},
		{X: c.X - hw, Y: c.Y},
	}
}

// SquareExtents 返回 [lo, hi] 正方形网格四个角格子的外侧顶点
// 用于没有可见实体时的视口回退范围
func (p IsoProjection) SquareExtents(lo, hi int) []Vec2 {
	corners := make([]Vec2, 0, 16)
	for _, c := range [][2]int{{lo, lo}, {lo, hi}, {hi, lo}, {hi, hi}} {
		tc := p.TileCorners(c[0], c[1])
		corners = append(corners, tc[:]...)
	}
	return corners
}

// SortKey 计算格子的绘制排序键
// 沿等距远轴递减：x+y 越大越靠后，键越小，越先绘制
func SortKey(x, y int) int {
	return -(x + y)
}

// BoundingBox 计算点集的轴对齐包围盒
// 返回:
//   - min, max: 包围盒的两个角
//   - ok: 点集为空时为 false
func BoundingBox(points []Vec2) (min, max Vec2, ok bool) {
	if len(points) == 0 {
		return Vec2{}, Vec2{}, false
	}
	min = Vec2{X: math.Inf(1), Y: math.Inf(1)}
	max = Vec2{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, pt := range points {
		min.X = math.Min(min.X, pt.X)
		min.Y = math.Min(min.Y, pt.Y)
		max.X = math.Max(max.X, pt.X)
		max.Y = math.Max(max.Y, pt.Y)
	}
	return min, max, true
}

// TilesInDrawOrder 返回 [lo, hi] 正方形网格的所有格子，按 SortKey 升序排列
// 排序键相同的格子按 x 升序
func TilesInDrawOrder(lo, hi int) [][2]int {
	if hi < lo {
		return nil
	}
	n := hi - lo + 1
	tiles := make([][2]int, 0, n*n)
	// x+y 从大到小即 SortKey 从小到大
	for sum := 2 * hi; sum >= 2*lo; sum-- {
		for x := lo; x <= hi; x++ {
			y := sum - x
			if y >= lo && y <= hi {
				tiles = append(tiles, [2]int{x, y})
			}
		}
	}
	return tiles
}

// ScreenTransform 世界坐标到屏幕坐标的缩放和平移
type ScreenTransform struct {
	Scale   float64 // 每个世界单位对应的像素数
	CenterX float64 // 屏幕中心对应的世界坐标
	CenterY float64
	Width   float64 // 屏幕尺寸（像素）
	Height  float64
}

// ViewportTransform 根据视口半高和中心构建变换
// halfHeight 为视口在世界坐标中的半高，必须为正
func ViewportTransform(halfHeight float64, center Vec2, width, height float64) ScreenTransform {
	scale := 1.0
	if halfHeight > 0 && height > 0 {
		scale = height / (2 * halfHeight)
	}
	return ScreenTransform{Scale: scale, CenterX: center.X, CenterY: center.Y, Width: width, Height: height}
}

// FitTransform 构建一个让 [min, max] 包围盒完整显示在屏幕内的变换
// padding 为屏幕四周保留的像素
func FitTransform(min, max Vec2, width, height, padding float64) ScreenTransform {
	w := max.X - min.X
	h := max.Y - min.Y
	availW := math.Max(width-2*padding, 1)
	availH := math.Max(height-2*padding, 1)

	scale := 1.0
	switch {
	case w > 0 && h > 0:
		scale = math.Min(availW/w, availH/h)
	case w > 0:
		scale = availW / w
	case h > 0:
		scale = availH / h
	}
	return ScreenTransform{
		Scale:   scale,
		CenterX: (min.X + max.X) / 2,
		CenterY: (min.Y + max.Y) / 2,
		Width:   width,
		Height:  height,
	}
}

// ToScreen 将世界坐标转换为屏幕坐标
func (t ScreenTransform) ToScreen(v Vec2) (float64, float64) {
	return (v.X-t.CenterX)*t.Scale + t.Width/2, (v.Y-t.CenterY)*t.Scale + t.Height/2
}
