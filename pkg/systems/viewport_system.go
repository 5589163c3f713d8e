package systems

import (
	"math"

	"github.com/decker502/sanctuary/pkg/components"
	"github.com/decker502/sanctuary/pkg/config"
	"github.com/decker502/sanctuary/pkg/ecs"
	"github.com/decker502/sanctuary/pkg/utils"
)

// ViewportSystem 让视口平滑地缩放到能容纳所有可见实体的尺寸。
// 状态保存在视口实体的 ViewportComponent 上。
type ViewportSystem struct {
	entityManager  *ecs.EntityManager
	viewportEntity ecs.EntityID // 视口实体ID
	gridExtents    []utils.Vec2 // 没有可见实体时使用的网格范围
}

// NewViewportSystem 创建视口系统。
// 初始尺寸为 MinSize，且当前值已与目标一致。
func NewViewportSystem(em *ecs.EntityManager, cfg config.ViewportConfig) *ViewportSystem {
	vs := &ViewportSystem{entityManager: em}

	vs.viewportEntity = em.CreateEntity()
	ecs.AddComponent(em, vs.viewportEntity, &components.ViewportComponent{
		TargetSize:  cfg.MinSize,
		CurrentSize: cfg.MinSize,
		Aspect:      cfg.Aspect,
		MinSize:     cfg.MinSize,
		MaxSize:     cfg.MaxSize,
		Smoothing:   cfg.Smoothing,
		Epsilon:     cfg.Epsilon,
	})

	return vs
}

func (vs *ViewportSystem) component() *components.ViewportComponent {
	vc, ok := ecs.GetComponent[*components.ViewportComponent](vs.entityManager, vs.viewportEntity)
	if !ok {
		return nil
	}
	return vc
}

// SetGridExtents 设置回退范围（当前网格四角的世界坐标）
func (vs *ViewportSystem) SetGridExtents(corners []utils.Vec2) {
	vs.gridExtents = append(vs.gridExtents[:0], corners...)
}

// SetAspect 设置视口宽高比，非正值被忽略
func (vs *ViewportSystem) SetAspect(aspect float64) {
	vc := vs.component()
	if vc == nil || aspect <= 0 {
		return
	}
	vc.Aspect = aspect
}

// Retarget 根据可见实体位置计算新的目标尺寸。
// 参数:
//   - positions: 可见实体的世界坐标；为空时使用网格范围
//   - padding: 包围盒四周的留白（世界单位）
//
// 返回:
//   - 限制在 [MinSize, MaxSize] 内的目标半高
func (vs *ViewportSystem) Retarget(positions []utils.Vec2, padding float64) float64 {
	vc := vs.component()
	if vc == nil {
		return 0
	}

	min, max, ok := utils.BoundingBox(positions)
	if !ok {
		min, max, ok = utils.BoundingBox(vs.gridExtents)
	}
	if !ok {
		vc.TargetSize = vc.MinSize
		vc.TargetCenterX, vc.TargetCenterY = 0, 0
		vc.IsAnimating = true
		return vc.TargetSize
	}

	min.X -= padding
	min.Y -= padding
	max.X += padding
	max.Y += padding

	halfWidth := (max.X - min.X) / 2
	halfHeight := (max.Y - min.Y) / 2

	aspect := vc.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	target := math.Max(halfHeight, halfWidth/aspect)
	target = math.Max(vc.MinSize, math.Min(vc.MaxSize, target))

	vc.TargetSize = target
	vc.TargetCenterX = (min.X + max.X) / 2
	vc.TargetCenterY = (min.Y + max.Y) / 2
	vc.IsAnimating = true
	return target
}

// Update 让当前尺寸和中心向目标逼近。
// 每帧插值比例不超过 1，因此不会越过目标。
func (vs *ViewportSystem) Update(dt float64) {
	vc := vs.component()
	if vc == nil || !vc.IsAnimating {
		return
	}

	t := math.Min(1, math.Max(0, vc.Smoothing*dt))
	vc.CurrentSize = approach(vc.CurrentSize, vc.TargetSize, t, vc.Epsilon)
	vc.CenterX = approach(vc.CenterX, vc.TargetCenterX, t, vc.Epsilon)
	vc.CenterY = approach(vc.CenterY, vc.TargetCenterY, t, vc.Epsilon)

	if vc.CurrentSize == vc.TargetSize && vc.CenterX == vc.TargetCenterX && vc.CenterY == vc.TargetCenterY {
		vc.IsAnimating = false
	}
}

// approach 按比例 t 向目标插值，差值小于 epsilon 时吸附
func approach(current, target, t, epsilon float64) float64 {
	if math.Abs(target-current) < epsilon {
		return target
	}
	next := current + (target-current)*t
	if math.Abs(target-next) < epsilon {
		return target
	}
	return next
}

// Snap 立即跳到目标状态
func (vs *ViewportSystem) Snap() {
	vc := vs.component()
	if vc == nil {
		return
	}
	vc.CurrentSize = vc.TargetSize
	vc.CenterX = vc.TargetCenterX
	vc.CenterY = vc.TargetCenterY
	vc.IsAnimating = false
}

// TargetSize 返回目标半高
func (vs *ViewportSystem) TargetSize() float64 {
	if vc := vs.component(); vc != nil {
		return vc.TargetSize
	}
	return 0
}

// CurrentSize 返回当前半高
func (vs *ViewportSystem) CurrentSize() float64 {
	if vc := vs.component(); vc != nil {
		return vc.CurrentSize
	}
	return 0
}

// Center 返回当前视口中心
func (vs *ViewportSystem) Center() utils.Vec2 {
	if vc := vs.component(); vc != nil {
		return utils.Vec2{X: vc.CenterX, Y: vc.CenterY}
	}
	return utils.Vec2{}
}

// IsAnimating 返回视口是否仍在缩放中
func (vs *ViewportSystem) IsAnimating() bool {
	if vc := vs.component(); vc != nil {
		return vc.IsAnimating
	}
	return false
}
