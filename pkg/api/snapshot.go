package api

import (
	"fmt"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/decker502/sanctuary/pkg/config"
	"github.com/decker502/sanctuary/pkg/game"
	"github.com/decker502/sanctuary/pkg/sanctuary"
	"github.com/decker502/sanctuary/pkg/utils"
)

var (
	snapshotBackground = color.RGBA{R: 24, G: 32, B: 40, A: 255}
	tileLight          = color.RGBA{R: 118, G: 178, B: 92, A: 255}
	tileDark           = color.RGBA{R: 104, G: 162, B: 80, A: 255}
	tileEdge           = color.RGBA{R: 70, G: 120, B: 56, A: 255}
	freshOutline       = color.RGBA{R: 255, G: 245, B: 200, A: 255}
	labelColor         = color.RGBA{R: 230, G: 230, B: 230, A: 255}
)

// snapshotPadding 图片四周留白（像素）
const snapshotPadding = 24

// SnapshotRenderer 将布局渲染为 PNG 图片
// 与查看器使用相同的投影和绘制顺序
type SnapshotRenderer struct {
	Catalog    *config.Catalog // 为 nil 时所有实体使用灰色
	Projection utils.IsoProjection
}

// Render 绘制布局并以 PNG 格式写入 w
func (sr SnapshotRenderer) Render(w io.Writer, layout game.LayoutState, width, height int) error {
	dc := gg.NewContext(width, height)
	dc.SetColor(snapshotBackground)
	dc.Clear()

	points := sr.Projection.SquareExtents(layout.Min.X, layout.Max.X)
	for _, e := range layout.Entities {
		points = append(points, e.World)
	}
	lo, hi, _ := utils.BoundingBox(points)
	tr := utils.FitTransform(lo, hi, float64(width), float64(height), snapshotPadding)

	sr.drawTiles(dc, tr, layout.Min.X, layout.Max.X)
	for _, e := range layout.Entities {
		sr.drawEntity(dc, tr, e)
	}

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(labelColor)
	dc.DrawString(fmt.Sprintf("%s  %dx%d  %d/%d", layout.View, layout.GridSize, layout.GridSize,
		len(layout.Entities), layout.Total), 8, 16)

	return dc.EncodePNG(w)
}

func (sr SnapshotRenderer) drawTiles(dc *gg.Context, tr utils.ScreenTransform, lo, hi int) {
	dc.SetLineWidth(1)
	for _, c := range utils.TilesInDrawOrder(lo, hi) {
		corners := sr.Projection.TileCorners(c[0], c[1])
		for i, pt := range corners {
			x, y := tr.ToScreen(pt)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()

		if (c[0]+c[1])%2 == 0 {
			dc.SetColor(tileLight)
		} else {
			dc.SetColor(tileDark)
		}
		dc.FillPreserve()
		dc.SetColor(tileEdge)
		dc.Stroke()
	}
}

func (sr SnapshotRenderer) drawEntity(dc *gg.Context, tr utils.ScreenTransform, e game.EntityState) {
	x, y := tr.ToScreen(e.World)
	r := sr.Projection.TileHeight * 0.35 * tr.Scale

	category := sanctuary.CategoryAnimal
	if e.Category == sanctuary.CategoryMarker.String() {
		category = sanctuary.CategoryMarker
	}
	fill := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	if sr.Catalog != nil {
		fill = sr.Catalog.ColorOf(e.ID, category)
	}

	// 阴影
	_, groundY := tr.ToScreen(e.World.Add(utils.Vec2{Y: sr.Projection.EntityYOffset}))
	dc.SetColor(color.RGBA{A: 80})
	dc.DrawEllipse(x, groundY, r, r/2)
	dc.Fill()

	if category == sanctuary.CategoryMarker {
		dc.DrawRoundedRectangle(x-r*0.6, y-r, r*1.2, r*1.6, r*0.4)
	} else {
		dc.DrawCircle(x, y, r)
	}
	dc.SetColor(fill)
	dc.FillPreserve()
	if e.Fresh {
		dc.SetColor(freshOutline)
		dc.SetLineWidth(2)
	} else {
		dc.SetColor(color.RGBA{A: 160})
		dc.SetLineWidth(1)
	}
	dc.Stroke()
}
