package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/decker502/sanctuary/pkg/config"
	"github.com/decker502/sanctuary/pkg/sanctuary"
)

var serviceNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

const testCatalogYAML = `
animals:
  - id: lion
    color: "#d9a441"
  - id: zebra
  - id: fox
  - id: owl
grave:
  color: "#6b6b6b"
`

func newTestService(t *testing.T, state *GameState) *SanctuaryService {
	t.Helper()
	cat, err := config.ParseCatalog([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("ParseCatalog() error: %v", err)
	}
	if state == nil {
		state = NewGameStateWithManager(nil)
	}
	return NewSanctuaryService(ServiceOptions{
		Catalog: cat,
		State:   state,
		Clock:   func() time.Time { return serviceNow },
		Rand:    rand.New(rand.NewSource(42)),
	})
}

// assertUniqueCells 可见实体的格子互不相同且在网格范围内
func assertUniqueCells(t *testing.T, layout LayoutState) {
	t.Helper()
	seen := make(map[sanctuary.Cell]string)
	for _, e := range layout.Entities {
		if other, ok := seen[e.Cell]; ok {
			t.Errorf("%s and %s share cell %v", e.ID, other, e.Cell)
		}
		seen[e.Cell] = e.ID
		if e.Cell.X < layout.Min.X || e.Cell.X > layout.Max.X || e.Cell.Y < layout.Min.Y || e.Cell.Y > layout.Max.Y {
			t.Errorf("%s at %v outside %v..%v", e.ID, e.Cell, layout.Min, layout.Max)
		}
	}
}

func TestServiceUnlockAnimal(t *testing.T) {
	state := NewGameStateWithManager(nil)
	s := newTestService(t, state)

	p, err := s.UnlockAnimal("lion")
	if err != nil {
		t.Fatalf("UnlockAnimal() error: %v", err)
	}
	if p.Duplicate {
		t.Error("first unlock should not be a duplicate")
	}

	saves := state.GetSaveManager()
	if !saves.IsAnimalUnlocked("lion") || !saves.IsNewlyHatched("lion") {
		t.Error("unlock should be persisted and marked newly hatched")
	}
	if d, ok := saves.AnimalDate("lion", time.UTC); !ok || d.Format(sanctuary.DateLayout) != "2024-06-15" {
		t.Errorf("AnimalDate(lion) = %v, %v, want 2024-06-15", d, ok)
	}
	if got := s.Stats().Daily; got != 1 {
		t.Errorf("Stats().Daily = %d, want 1", got)
	}

	again, err := s.UnlockAnimal("lion")
	if err != nil || !again.Duplicate {
		t.Errorf("second unlock = %+v, %v, want duplicate", again, err)
	}
	if got := s.Stats().Daily; got != 1 {
		t.Errorf("duplicate unlock should not count as a hatch, Daily = %d", got)
	}

	if _, err := s.UnlockAnimal("dragon"); !errors.Is(err, sanctuary.ErrUnknownIdentity) {
		t.Errorf("UnlockAnimal(dragon) error = %v, want ErrUnknownIdentity", err)
	}
}

// TestServiceRestore 待处理动物、日期缺失、墓碑和上次视图的恢复
func TestServiceRestore(t *testing.T) {
	state := NewGameStateWithManager(nil)
	saves := state.GetSaveManager()
	saves.UnlockAnimal("lion")
	saves.SetAnimalDate("lion", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	saves.UnlockAnimal("zebra")
	saves.MarkNewlyHatched("zebra")
	saves.UnlockAnimal("fox")
	saves.UnlockAnimal("ghost") // 不在目录中
	saves.AddGrave("grave_1", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC))
	saves.SetPendingAnimal("owl")
	state.GetSettingsManager().SetLastView(sanctuary.ViewWeek)

	s := newTestService(t, state)
	report := s.Restore()

	want := sanctuary.RestoreReport{Placed: 5, Unknown: 1}
	if report != want {
		t.Errorf("Restore() = %+v, want %+v", report, want)
	}
	if saves.GetPendingAnimal() != "" {
		t.Error("pending animal should be cleared")
	}
	if !saves.IsAnimalUnlocked("owl") || !saves.IsNewlyHatched("owl") {
		t.Error("pending animal should join the unlocked and newly hatched lists")
	}
	if got := s.Stats().Daily; got != 1 {
		t.Errorf("pending animal should record one hatch, Daily = %d", got)
	}

	wantDates := map[string]string{
		"lion":  "2024-06-01", // 记录的日期
		"zebra": "2024-06-15", // 新孵化但没有日期
		"fox":   "2024-06-08", // 没有记录，视为 7 天前
		"owl":   "2024-06-15", // 待处理动物
	}
	for id, want := range wantDates {
		d, ok := saves.AnimalDate(id, time.UTC)
		if !ok || d.Format(sanctuary.DateLayout) != want {
			t.Errorf("AnimalDate(%s) = %v, want %s", id, d, want)
		}
	}

	layout := s.Layout()
	if layout.View != "Week" {
		t.Errorf("View = %s, want Week from settings", layout.View)
	}
	visible := make(map[string]bool)
	for _, e := range layout.Entities {
		visible[e.ID] = true
	}
	if len(visible) != 3 || !visible["zebra"] || !visible["owl"] || !visible["grave_1"] {
		t.Errorf("Week view shows %v, want zebra, owl and grave_1", visible)
	}
	if layout.Total != 5 {
		t.Errorf("Total = %d, want 5", layout.Total)
	}
	assertUniqueCells(t, layout)
}

func TestServiceAddGrave(t *testing.T) {
	state := NewGameStateWithManager(nil)
	s := newTestService(t, state)

	id, _, err := s.AddGrave()
	if err != nil {
		t.Fatalf("AddGrave() error: %v", err)
	}
	if !strings.HasPrefix(id, GravePrefix) {
		t.Errorf("grave id %q should start with %q", id, GravePrefix)
	}

	graves := state.GetSaveManager().GetGraves()
	if len(graves) != 1 || graves[0].ID != id || graves[0].Date != "2024-06-15" {
		t.Errorf("graves = %+v", graves)
	}

	second, _, _ := s.AddGrave()
	if second == id {
		t.Error("grave ids should be unique")
	}

	layout := s.Layout()
	if len(layout.Entities) != 2 || layout.Entities[0].Category != "marker" {
		t.Errorf("layout should contain two markers, got %+v", layout.Entities)
	}
	if s.Stats().Graves != 2 {
		t.Errorf("Stats().Graves = %d, want 2", s.Stats().Graves)
	}
}

// TestServiceSetViewNotifies 切换视图持久化设置并通知监听者
func TestServiceSetViewNotifies(t *testing.T) {
	state := NewGameStateWithManager(nil)
	s := newTestService(t, state)
	_, _ = s.UnlockAnimal("lion")

	var got []LayoutState
	unsubscribe := s.Subscribe(func(l LayoutState) { got = append(got, l) })

	if _, changed := s.SetView(sanctuary.ViewDay); !changed {
		t.Fatal("SetView(Day) should change the view")
	}
	if _, changed := s.SetView(sanctuary.ViewDay); changed {
		t.Error("SetView(Day) again should be a no-op")
	}
	if len(got) != 1 || got[0].View != "Day" {
		t.Fatalf("listener calls = %+v, want one Day layout", got)
	}
	if state.GetSettingsManager().LastView() != sanctuary.ViewDay {
		t.Error("last view should be remembered")
	}

	unsubscribe()
	s.SetView(sanctuary.ViewAll)
	if len(got) != 1 {
		t.Error("listener should not be called after unsubscribe")
	}
}

func TestServiceHatchRandom(t *testing.T) {
	s := newTestService(t, nil)

	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		id, _, err := s.HatchRandom()
		if err != nil {
			t.Fatalf("HatchRandom #%d: %v", i, err)
		}
		if seen[id] {
			t.Errorf("HatchRandom returned %s twice", id)
		}
		seen[id] = true
	}

	if _, _, err := s.HatchRandom(); !errors.Is(err, ErrAllAnimalsUnlocked) {
		t.Errorf("HatchRandom() error = %v, want ErrAllAnimalsUnlocked", err)
	}
	if st := s.Stats(); st.Unlocked != 4 || st.Locked != 0 {
		t.Errorf("Stats() = %+v, want 4 unlocked and 0 locked", st)
	}
}

// TestServiceHatchRandomRacesUnlock 随机孵化与直接解锁并发时，孵化结果从不是重复，每只动物恰好记录一次孵化
func TestServiceHatchRandomRacesUnlock(t *testing.T) {
	for round := 0; round < 20; round++ {
		s := newTestService(t, nil)

		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			duplicates int
		)
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					_, p, err := s.HatchRandom()
					if errors.Is(err, ErrAllAnimalsUnlocked) {
						return
					}
					if err != nil {
						t.Errorf("HatchRandom() error: %v", err)
						return
					}
					if p.Duplicate {
						mu.Lock()
						duplicates++
						mu.Unlock()
					}
				}
			}()
		}
		for _, id := range []string{"lion", "zebra", "fox", "owl"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := s.UnlockAnimal(id); err != nil {
					t.Errorf("UnlockAnimal(%s) error: %v", id, err)
				}
			}(id)
		}
		wg.Wait()

		if duplicates != 0 {
			t.Fatalf("round %d: HatchRandom returned %d duplicate placements", round, duplicates)
		}
		if st := s.Stats(); st.Daily != 4 || st.Unlocked != 4 {
			t.Fatalf("round %d: Stats() = %+v, want 4 hatches and 4 unlocked", round, st)
		}
	}
}

// TestServiceLayoutDrawOrder 实体按排序键升序排列
func TestServiceLayoutDrawOrder(t *testing.T) {
	s := newTestService(t, nil)
	for _, id := range []string{"lion", "zebra", "fox", "owl"} {
		if _, err := s.UnlockAnimal(id); err != nil {
			t.Fatal(err)
		}
	}

	layout := s.Layout()
	for i := 1; i < len(layout.Entities); i++ {
		if layout.Entities[i-1].SortKey > layout.Entities[i].SortKey {
			t.Fatalf("entities not in draw order: %+v", layout.Entities)
		}
	}
	for _, e := range layout.Entities {
		if e.SortKey != -(e.Cell.X + e.Cell.Y) {
			t.Errorf("%s sort key = %d, want %d", e.ID, e.SortKey, -(e.Cell.X + e.Cell.Y))
		}
	}
}

// TestServiceViewport 视口目标随可见实体变化，并平滑收敛
func TestServiceViewport(t *testing.T) {
	s := newTestService(t, nil)
	min := config.DefaultSanctuaryConfig().Viewport.MinSize

	if s.ViewportTargetSize() < min || s.ViewportCurrentSize() != s.ViewportTargetSize() {
		t.Errorf("initial viewport target=%.1f current=%.1f", s.ViewportTargetSize(), s.ViewportCurrentSize())
	}

	for _, id := range []string{"lion", "zebra", "fox", "owl"} {
		_, _ = s.UnlockAnimal(id)
	}
	for i := 0; i < 1000; i++ {
		s.UpdateViewport(1.0 / 60)
	}
	if s.ViewportCurrentSize() != s.ViewportTargetSize() {
		t.Errorf("viewport should settle: current=%.2f target=%.2f", s.ViewportCurrentSize(), s.ViewportTargetSize())
	}
	if s.Layout().ViewportTarget != s.ViewportTargetSize() {
		t.Error("layout should report the viewport target")
	}
}

// TestServiceConcurrentAccess 查看器和 HTTP 并发调用时布局保持一致
func TestServiceConcurrentAccess(t *testing.T) {
	s := newTestService(t, nil)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				switch i % 4 {
				case 0:
					_, _, _ = s.AddGrave()
				case 1:
					s.SetView(sanctuary.ViewWindows[(g+i)%len(sanctuary.ViewWindows)])
				case 2:
					_ = s.Layout()
				default:
					_, _ = s.UnlockAnimal(fmt.Sprintf("owl%d", i))
					s.UpdateViewport(0.016)
				}
			}
		}(g)
	}
	wg.Wait()

	s.SetView(sanctuary.ViewDay)
	s.SetView(sanctuary.ViewAll)
	layout := s.Layout()
	if layout.Total != 4*7 {
		t.Errorf("Total = %d, want %d graves", layout.Total, 4*7)
	}
	if len(layout.Entities) != layout.Total {
		t.Errorf("All view shows %d of %d entities", len(layout.Entities), layout.Total)
	}
	assertUniqueCells(t, layout)
}

func TestServiceFullscreenSetting(t *testing.T) {
	state := NewGameStateWithManager(nil)
	s := newTestService(t, state)

	if s.Fullscreen() {
		t.Error("fullscreen should default to false")
	}
	s.SetFullscreen(true)
	if !s.Fullscreen() || !state.GetSettingsManager().GetSettings().Fullscreen {
		t.Error("fullscreen setting should be stored")
	}
	if err := s.Save(); err != nil {
		t.Errorf("Save() in memory mode: %v", err)
	}
}
