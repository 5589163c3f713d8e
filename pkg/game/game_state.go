package game

import (
	"log"

	"github.com/quasilyte/gdata/v2"
)

// GameState 持有跨场景共享的持久化状态
// 查看器和 HTTP 服务各自创建一个实例，并交给 SanctuaryService 使用
type GameState struct {
	gdataManager    *gdata.Manager   // 可为 nil（降级模式）
	saveManager     *SaveManager     // 保护区存档
	settingsManager *SettingsManager // 查看器设置
}

// NewGameState 打开 gdata 存储并加载存档和设置
//
// 参数：
//   - appName: gdata 存储目录名
//
// 返回：
//   - *GameState: 无法打开存储时进入降级模式（仅内存），不返回错误
func NewGameState(appName string) *GameState {
	manager, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		log.Printf("[GameState] Warning: failed to open gdata storage %q: %v (running in memory)", appName, err)
		manager = nil
	} else {
		log.Printf("[GameState] gdata storage opened: %s", appName)
	}
	return NewGameStateWithManager(manager)
}

// NewGameStateWithManager 使用已有的 gdata Manager 创建状态
func NewGameStateWithManager(manager *gdata.Manager) *GameState {
	settings, err := NewSettingsManager(manager)
	if err != nil {
		log.Printf("[GameState] Warning: settings manager: %v", err)
	}
	return &GameState{
		gdataManager:    manager,
		saveManager:     NewSaveManager(manager),
		settingsManager: settings,
	}
}

// GetGdataManager 返回 gdata Manager，降级模式下为 nil
func (gs *GameState) GetGdataManager() *gdata.Manager {
	return gs.gdataManager
}

// GetSaveManager 返回存档管理器
func (gs *GameState) GetSaveManager() *SaveManager {
	return gs.saveManager
}

// GetSettingsManager 返回设置管理器
func (gs *GameState) GetSettingsManager() *SettingsManager {
	return gs.settingsManager
}

// IsPersistent 存档是否会写入磁盘
func (gs *GameState) IsPersistent() bool {
	return gs.gdataManager != nil
}
