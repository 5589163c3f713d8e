package scenes

import (
	"math/rand"
	"testing"
	"time"

	"github.com/decker502/sanctuary/pkg/components"
	"github.com/decker502/sanctuary/pkg/config"
	"github.com/decker502/sanctuary/pkg/ecs"
	"github.com/decker502/sanctuary/pkg/game"
	"github.com/decker502/sanctuary/pkg/sanctuary"
)

func newSceneService(t *testing.T, now *time.Time) *game.SanctuaryService {
	t.Helper()
	cat, err := config.ParseCatalog([]byte("animals:\n  - id: lion\n    name: Lion\n    color: \"#d9a441\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	return game.NewSanctuaryService(game.ServiceOptions{
		Catalog: cat,
		Clock:   func() time.Time { return *now },
		Rand:    rand.New(rand.NewSource(3)),
	})
}

// TestSanctuarySceneActions 按键操作经服务修改布局，Update 后同步到渲染系统
func TestSanctuarySceneActions(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	svc := newSceneService(t, &now)
	scene := NewSanctuaryScene(svc, 1024, 640)

	tests := []struct {
		name     string
		action   sceneAction
		wantView sanctuary.ViewWindow
		wantSeen int
	}{
		{"孵化", actionHatch, sanctuary.ViewAll, 1},
		{"墓碑", actionGrave, sanctuary.ViewAll, 2},
		{"再次孵化时目录已空", actionHatch, sanctuary.ViewAll, 2},
		{"切换到年视图", actionViewYear, sanctuary.ViewYear, 2},
		{"刷新", actionRefresh, sanctuary.ViewYear, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene.perform(tt.action)
			if err := scene.Update(1.0 / 60); err != nil {
				t.Fatal(err)
			}
			if svc.View() != tt.wantView {
				t.Errorf("view = %s, want %s", svc.View(), tt.wantView)
			}
			if got := len(scene.renderSystem.DrawOrder()); got != tt.wantSeen {
				t.Errorf("rendered entities = %d, want %d", got, tt.wantSeen)
			}
		})
	}

	if scene.message != "Every animal has hatched" {
		t.Errorf("message = %q", scene.message)
	}
	if scene.stats.Daily != 1 || scene.stats.Graves != 1 {
		t.Errorf("HUD stats = %+v", scene.stats)
	}
}

// TestSanctuarySceneSyncColors 渲染组件使用目录颜色，墓碑识别为 marker
func TestSanctuarySceneSyncColors(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	svc := newSceneService(t, &now)
	if _, err := svc.UnlockAnimal("lion"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.AddGrave(); err != nil {
		t.Fatal(err)
	}
	scene := NewSanctuaryScene(svc, 800, 600)

	markers := 0
	for _, id := range scene.renderSystem.DrawOrder() {
		c, _ := ecs.GetComponent[*components.SanctuaryEntityComponent](scene.renderSystem.EntityManager(), id)
		if c.Category == sanctuary.CategoryMarker {
			markers++
			continue
		}
		if c.ID != "lion" || c.Color.R != 0xd9 || !c.Fresh {
			t.Errorf("lion component = %+v", c)
		}
	}
	if markers != 1 {
		t.Errorf("markers = %d, want 1", markers)
	}
}

// TestSanctuarySceneMidnightRefresh 跨日后重排，前一天的实体从日视图消失
func TestSanctuarySceneMidnightRefresh(t *testing.T) {
	now := time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)
	svc := newSceneService(t, &now)
	scene := NewSanctuaryScene(svc, 800, 600)

	scene.perform(actionHatch)
	scene.perform(actionViewDay)
	_ = scene.Update(1.0 / 60)
	if got := len(scene.renderSystem.DrawOrder()); got != 1 {
		t.Fatalf("before midnight: %d entities, want 1", got)
	}

	now = now.Add(2 * time.Minute)
	_ = scene.Update(1.0 / 60)
	if got := len(scene.renderSystem.DrawOrder()); got != 0 {
		t.Errorf("after midnight: %d entities, want 0", got)
	}
}

func TestSanctuarySceneSaveOnExit(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	scene := NewSanctuaryScene(newSceneService(t, &now), 800, 600)

	var _ game.Saveable = scene
	var _ game.Resizable = scene
	if !scene.SaveOnExit() {
		t.Error("SaveOnExit() in memory mode should succeed")
	}
	scene.Resize(0, 0)
	if scene.width != 800 {
		t.Error("invalid size should be ignored")
	}
}
