package components

import (
	"image/color"

	"github.com/decker502/sanctuary/pkg/sanctuary"
)

// SanctuaryEntityComponent 网格上的一个收集物（动物或墓碑）
// 与 PositionComponent 配合使用，位置由格子坐标经等距投影得到
type SanctuaryEntityComponent struct {
	ID       string
	Category sanctuary.Category
	Cell     sanctuary.Cell
	SortKey  int
	Fresh    bool // 本次运行中新孵化，绘制高亮描边
	Color    color.RGBA
}
