package sanctuary

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(seed int64, catalog Catalog) *Engine {
	return NewEngine(Options{
		Catalog: catalog,
		Clock:   func() time.Time { return testNow },
		Rand:    rand.New(rand.NewSource(seed)),
	})
}

// assertLayoutInvariants 检查引擎当前布局的唯一性与边界
func assertLayoutInvariants(t *testing.T, e *Engine) {
	t.Helper()
	assertUniqueInBounds(t, e.grid, e.registry)
	if e.GridSize() < MinGridSize {
		t.Errorf("grid size %d below minimum", e.GridSize())
	}
}

// TestEngineTenthUnlockGrowsOnce 从空网格开始解锁 9 个实体，第 10 个触发一次扩张
func TestEngineTenthUnlockGrowsOnce(t *testing.T) {
	e := newTestEngine(1, nil)
	if e.GridSize() != 3 {
		t.Fatalf("initial grid size = %d, want 3", e.GridSize())
	}

	for i := 0; i < 9; i++ {
		if _, err := e.RequestUnlock(fmt.Sprintf("animal_%d", i), CategoryAnimal, time.Time{}, true); err != nil {
			t.Fatalf("unlock #%d: %v", i, err)
		}
	}
	if e.GridSize() != 3 {
		t.Fatalf("grid size after 9 unlocks = %d, want 3", e.GridSize())
	}

	p, err := e.RequestUnlock("animal_9", CategoryAnimal, time.Time{}, true)
	if err != nil {
		t.Fatalf("10th unlock: %v", err)
	}
	if p.Growths != 1 || e.GridSize() != 4 {
		t.Errorf("10th unlock: growths=%d size=%d, want 1 and 4", p.Growths, e.GridSize())
	}
	assertLayoutInvariants(t, e)
}

// TestEngineAllViewRestoration 切到本周再切回全部后，每个实体回到初始格子
func TestEngineAllViewRestoration(t *testing.T) {
	e := newTestEngine(3, nil)
	initial := make(map[string]Cell)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("animal_%d", i)
		p, err := e.RequestUnlock(id, CategoryAnimal, time.Time{}, true)
		if err != nil {
			t.Fatal(err)
		}
		initial[id] = p.Cell
	}

	if _, changed := e.CurrentFilterChanged(ViewWeek); !changed {
		t.Fatal("switching to Week should reflow")
	}
	assertLayoutInvariants(t, e)

	if _, changed := e.CurrentFilterChanged(ViewAll); !changed {
		t.Fatal("switching back to All should reflow")
	}

	for _, ent := range e.Entities() {
		if !ent.Active {
			t.Errorf("%s should be active in All view", ent.ID)
		}
		if ent.Cell != initial[ent.ID] {
			t.Errorf("%s restored at %v, want %v", ent.ID, ent.Cell, initial[ent.ID])
		}
	}
	assertLayoutInvariants(t, e)
}

func TestEngineFilterChangeIsIdempotent(t *testing.T) {
	e := newTestEngine(1, nil)
	if _, changed := e.CurrentFilterChanged(ViewAll); changed {
		t.Error("re-selecting the current view should be a no-op")
	}

	_, _ = e.RequestUnlock("lion", CategoryAnimal, time.Time{}, true)
	e.CurrentFilterChanged(ViewDay)
	before := e.Snapshot()
	if _, changed := e.CurrentFilterChanged(ViewDay); changed {
		t.Error("re-selecting Day should be a no-op")
	}
	after := e.Snapshot()
	if before.Entities[0].Cell != after.Entities[0].Cell {
		t.Error("no-op filter change must not move entities")
	}
}

// TestEngineDuplicateUnlock 重复解锁为空操作，首次日期保留
func TestEngineDuplicateUnlock(t *testing.T) {
	e := newTestEngine(1, nil)
	first, err := e.RequestUnlock("lion", CategoryAnimal, date(2024, 1, 1), false)
	if err != nil {
		t.Fatal(err)
	}

	again, err := e.RequestUnlock("lion", CategoryAnimal, time.Time{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Duplicate || again.Cell != first.Cell {
		t.Errorf("duplicate unlock = %+v, want Duplicate at %v", again, first.Cell)
	}

	ents := e.Entities()
	if len(ents) != 1 {
		t.Fatalf("registry has %d entities, want 1", len(ents))
	}
	if !ents[0].CreatedAt.Equal(date(2024, 1, 1)) || ents[0].Fresh {
		t.Errorf("first-seen date should win, got %s fresh=%v", ents[0].CreatedAt.Format(DateLayout), ents[0].Fresh)
	}
}

func TestEngineDateStamping(t *testing.T) {
	e := newTestEngine(1, nil)

	tests := []struct {
		name      string
		id        string
		createdAt time.Time
		fresh     bool
		want      time.Time
	}{
		{name: "新解锁记为今天", id: "a", createdAt: date(2020, 1, 1), fresh: true, want: date(2024, 6, 15)},
		{name: "恢复时使用记录的日期", id: "b", createdAt: date(2024, 6, 1), want: date(2024, 6, 1)},
		{name: "没有记录时记为 7 天前", id: "c", want: date(2024, 6, 8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.RequestUnlock(tt.id, CategoryAnimal, tt.createdAt, tt.fresh); err != nil {
				t.Fatal(err)
			}
			ent, _ := e.registry.Get(tt.id)
			if !ent.CreatedAt.Equal(tt.want) {
				t.Errorf("CreatedAt = %s, want %s", ent.CreatedAt.Format(DateLayout), tt.want.Format(DateLayout))
			}
		})
	}
}

// TestEngineUnknownIdentity 目录无法解析的实体被跳过，批量恢复继续
func TestEngineUnknownIdentity(t *testing.T) {
	known := map[string]bool{"lion": true, "zebra": true}
	e := newTestEngine(1, CatalogFunc(func(id string, c Category) bool {
		return c == CategoryMarker || known[id]
	}))

	_, err := e.RequestUnlock("dragon", CategoryAnimal, time.Time{}, true)
	if !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("error = %v, want ErrUnknownIdentity", err)
	}
	if _, err := e.RequestUnlock("  ", CategoryAnimal, time.Time{}, true); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("blank id error = %v, want ErrUnknownIdentity", err)
	}

	report := e.RestoreBatch([]UnlockRequest{
		{ID: "lion", Category: CategoryAnimal},
		{ID: "dragon", Category: CategoryAnimal},
		{ID: "zebra", Category: CategoryAnimal},
		{ID: "lion", Category: CategoryAnimal},
		{ID: "grave_1", Category: CategoryMarker, CreatedAt: date(2024, 6, 10)},
	})

	want := RestoreReport{Placed: 3, Duplicates: 1, Unknown: 1}
	if report != want {
		t.Errorf("RestoreBatch() = %+v, want %+v", report, want)
	}
	if len(e.Entities()) != 3 {
		t.Errorf("registry has %d entities, want 3", len(e.Entities()))
	}
	assertLayoutInvariants(t, e)
}

// TestEngineUnlockWhileFiltered 受限视图下解锁的实体回到全部视图时不与其他实体冲突
func TestEngineUnlockWhileFiltered(t *testing.T) {
	e := newTestEngine(5, nil)
	for i := 0; i < 9; i++ {
		if _, err := e.RequestUnlock(fmt.Sprintf("old_%d", i), CategoryAnimal, date(2023, 1, 1), false); err != nil {
			t.Fatal(err)
		}
	}

	res, _ := e.CurrentFilterChanged(ViewDay)
	if res.Visible != 0 || len(e.Snapshot().Entities) != 0 {
		t.Fatalf("Day view should be empty, got %+v", res)
	}

	p, err := e.RequestUnlock("newborn", CategoryAnimal, time.Time{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if p.Growths != 1 {
		t.Errorf("layout was full, expected one growth, got %d", p.Growths)
	}

	snap := e.Snapshot()
	if len(snap.Entities) != 1 || snap.Entities[0].ID != "newborn" {
		t.Fatalf("Day view should show only the newborn, got %+v", snap.Entities)
	}
	if !p.Visible || p.Cell != snap.Entities[0].Cell {
		t.Errorf("placement = %+v, want the displayed cell %v", p, snap.Entities[0].Cell)
	}
	if orig, _ := e.OriginalCell("newborn"); p.Original != orig {
		t.Errorf("placement Original = %v, want layout cell %v", p.Original, orig)
	}
	assertLayoutInvariants(t, e)

	hidden, err := e.RequestUnlock("elder", CategoryAnimal, date(2023, 1, 1), false)
	if err != nil {
		t.Fatal(err)
	}
	if hidden.Visible || hidden.Cell != hidden.Original {
		t.Errorf("an entity outside the Day view should report its layout cell, got %+v", hidden)
	}

	again, err := e.RequestUnlock("newborn", CategoryAnimal, time.Time{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Duplicate || !again.Visible || again.Cell != p.Cell {
		t.Errorf("duplicate unlock while filtered = %+v, want displayed cell %v", again, p.Cell)
	}

	e.CurrentFilterChanged(ViewAll)
	if got := len(e.Snapshot().Entities); got != 11 {
		t.Errorf("All view shows %d entities, want 11", got)
	}
	if c, _ := e.OriginalCell("newborn"); e.registry.occupied[c] != "newborn" {
		t.Errorf("newborn should be restored at its layout cell %v", c)
	}
	assertLayoutInvariants(t, e)
}

// TestEngineRandomSequenceKeepsInvariants 随机的解锁与视图切换序列始终保持唯一性和边界
func TestEngineRandomSequenceKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	e := newTestEngine(11, nil)

	for step := 0; step < 300; step++ {
		if rng.Intn(3) == 0 {
			e.CurrentFilterChanged(ViewWindows[rng.Intn(len(ViewWindows))])
		} else {
			created := testNow.AddDate(0, 0, -rng.Intn(500))
			cat := CategoryAnimal
			if rng.Intn(4) == 0 {
				cat = CategoryMarker
			}
			if _, err := e.RequestUnlock(fmt.Sprintf("e%d", step), cat, created, rng.Intn(2) == 0); err != nil {
				t.Fatalf("step %d: %v", step, err)
			}
		}
		assertLayoutInvariants(t, e)
		if t.Failed() {
			t.Fatalf("invariant broken at step %d", step)
		}
	}

	e.CurrentFilterChanged(ViewDay)
	e.CurrentFilterChanged(ViewAll)
	for _, ent := range e.Entities() {
		orig, _ := e.OriginalCell(ent.ID)
		if !ent.Active || ent.Cell != orig {
			t.Errorf("%s not restored to %v", ent.ID, orig)
		}
	}
}
