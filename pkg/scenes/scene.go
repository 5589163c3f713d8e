package scenes

import (
	"github.com/decker502/sanctuary/pkg/game"
)

// Scene 是 game.Scene 的别名，场景包内的类型都实现该接口
type Scene = game.Scene
