package game

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Scene 查看器中的一个场景
// 同一时刻只有一个场景接收 Update 和 Draw
type Scene interface {
	// Update 推进场景逻辑，deltaTime 单位为秒
	Update(deltaTime float64) error

	// Draw 绘制场景
	Draw(screen *ebiten.Image)
}

// Resizable 可选接口，窗口尺寸变化时通知场景
type Resizable interface {
	Resize(width, height int)
}

// Saveable 可选接口，窗口关闭前保存状态
type Saveable interface {
	// SaveOnExit 返回 false 表示保存失败（程序仍会退出）
	SaveOnExit() bool
}
