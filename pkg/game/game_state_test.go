package game

import "testing"

// TestGameStateDegradedMode gdata 不可用时所有管理器仍然可用
func TestGameStateDegradedMode(t *testing.T) {
	gs := NewGameStateWithManager(nil)

	if gs.IsPersistent() || gs.GetGdataManager() != nil {
		t.Error("nil manager should mean in-memory mode")
	}
	if gs.GetSaveManager() == nil || gs.GetSettingsManager() == nil {
		t.Fatal("managers should be created in degraded mode")
	}
	if err := gs.GetSaveManager().Save(); err != nil {
		t.Errorf("Save() in degraded mode: %v", err)
	}
}

// TestGameStateSharesManager 存档和设置使用同一个 gdata Manager
func TestGameStateSharesManager(t *testing.T) {
	gm := createTestGdataManager(t, "gamestate")
	gs := NewGameStateWithManager(gm)

	if !gs.IsPersistent() || gs.GetGdataManager() != gm {
		t.Error("GameState should keep the provided manager")
	}

	gs.GetSaveManager().UnlockAnimal("owl")
	if err := gs.GetSaveManager().Save(); err != nil {
		t.Fatal(err)
	}

	reopened := NewGameStateWithManager(gm)
	if !reopened.GetSaveManager().IsAnimalUnlocked("owl") {
		t.Error("save data should be visible through a new GameState on the same storage")
	}
}
