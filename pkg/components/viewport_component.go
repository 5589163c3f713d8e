package components

// ViewportComponent 管理视口的目标尺寸和平滑缩放状态。
// 尺寸是视口的半高（世界单位），与正交相机的 size 含义一致。
type ViewportComponent struct {
	// TargetSize 目标半高
	TargetSize float64

	// CurrentSize 当前半高（每帧向 TargetSize 逼近）
	CurrentSize float64

	// TargetCenterX/Y 目标中心（世界坐标）
	TargetCenterX float64
	TargetCenterY float64

	// CenterX/Y 当前中心（世界坐标）
	CenterX float64
	CenterY float64

	// Aspect 视口宽高比（宽/高）
	Aspect float64

	// MinSize/MaxSize 目标尺寸的限制范围
	MinSize float64
	MaxSize float64

	// Smoothing 平滑系数（每秒），每帧插值比例为 min(1, Smoothing*dt)
	Smoothing float64

	// Epsilon 差值小于该值时直接吸附到目标
	Epsilon float64

	// IsAnimating 是否仍在向目标逼近
	IsAnimating bool
}
