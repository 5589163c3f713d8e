package game

import (
	"errors"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// mockScene 记录调用情况的场景
type mockScene struct {
	updateCalled bool
	drawCalled   bool
	deltaTime    float64
	updateErr    error
	width        int
	height       int
	saveResult   bool
	saveCalled   bool
}

func (m *mockScene) Update(deltaTime float64) error {
	m.updateCalled = true
	m.deltaTime = deltaTime
	return m.updateErr
}

func (m *mockScene) Draw(screen *ebiten.Image) {
	m.drawCalled = true
}

func (m *mockScene) Resize(width, height int) {
	m.width, m.height = width, height
}

func (m *mockScene) SaveOnExit() bool {
	m.saveCalled = true
	return m.saveResult
}

// plainScene 不实现任何可选接口
type plainScene struct{}

func (plainScene) Update(float64) error { return nil }
func (plainScene) Draw(*ebiten.Image)   {}

func TestSceneManagerNoScene(t *testing.T) {
	sm := NewSceneManager()
	if sm.GetCurrentScene() != nil {
		t.Error("expected no scene initially")
	}
	if err := sm.Update(0.016); err != nil {
		t.Errorf("Update() without scene = %v", err)
	}
	sm.Draw(nil)
	if !sm.SaveOnExit() {
		t.Error("SaveOnExit() without scene should succeed")
	}
}

func TestSceneManagerUpdate(t *testing.T) {
	sm := NewSceneManager()
	scene := &mockScene{}
	sm.SwitchTo(scene)

	if err := sm.Update(0.016); err != nil {
		t.Fatal(err)
	}
	if !scene.updateCalled || scene.deltaTime != 0.016 {
		t.Errorf("Update not forwarded: %+v", scene)
	}

	scene.updateErr = errors.New("quit")
	if err := sm.Update(0.016); !errors.Is(err, scene.updateErr) {
		t.Errorf("Update() error = %v, want scene error", err)
	}
}

func TestSceneManagerSwitchBetweenScenes(t *testing.T) {
	sm := NewSceneManager()
	scene1 := &mockScene{}
	scene2 := &mockScene{}

	sm.SwitchTo(scene1)
	_ = sm.Update(0.016)
	sm.SwitchTo(scene2)
	_ = sm.Update(0.016)

	if !scene1.updateCalled || !scene2.updateCalled {
		t.Error("both scenes should have been updated once")
	}
	if sm.GetCurrentScene() != scene2 {
		t.Error("current scene should be scene2")
	}
}

// TestSceneManagerResize 尺寸变化通知当前场景，新场景切入时补发
func TestSceneManagerResize(t *testing.T) {
	sm := NewSceneManager()
	scene := &mockScene{}
	sm.SwitchTo(scene)

	sm.Resize(1024, 640)
	if scene.width != 1024 || scene.height != 640 {
		t.Errorf("scene size = %dx%d, want 1024x640", scene.width, scene.height)
	}

	next := &mockScene{}
	sm.SwitchTo(next)
	if next.width != 1024 || next.height != 640 {
		t.Errorf("new scene size = %dx%d, want 1024x640", next.width, next.height)
	}

	sm.SwitchTo(plainScene{})
	sm.Resize(800, 600)
}

func TestSceneManagerSaveOnExit(t *testing.T) {
	tests := []struct {
		name  string
		scene Scene
		want  bool
	}{
		{"保存成功", &mockScene{saveResult: true}, true},
		{"保存失败", &mockScene{saveResult: false}, false},
		{"无需保存", plainScene{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewSceneManager()
			sm.SwitchTo(tt.scene)
			if got := sm.SaveOnExit(); got != tt.want {
				t.Errorf("SaveOnExit() = %v, want %v", got, tt.want)
			}
		})
	}
}
