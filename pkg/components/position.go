package components

// PositionComponent 实体在世界坐标中的位置
type PositionComponent struct {
	X, Y float64
}
