package sanctuary

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestPlannerSizeFor(t *testing.T) {
	p := NewPlanner(MinGridSize, DefaultReflowSlack, rand.New(rand.NewSource(1)))

	tests := []struct {
		n    int
		want int
	}{
		{n: 0, want: 3},
		{n: 1, want: 3},
		{n: 8, want: 3},
		{n: 9, want: 4},
		{n: 15, want: 4},
		{n: 16, want: 5},
		{n: 24, want: 5},
		{n: 25, want: 6},
	}

	for _, tt := range tests {
		if got := p.SizeFor(tt.n); got != tt.want {
			t.Errorf("SizeFor(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

// TestReflowDensity 受限视图的网格尺寸是满足面积约束的最小值
func TestReflowDensity(t *testing.T) {
	now := date(2024, 6, 15)
	p := NewPlanner(MinGridSize, DefaultReflowSlack, rand.New(rand.NewSource(7)))

	for n := 1; n <= 30; n++ {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			g := NewGrid(12)
			g.Fill()
			reg := NewRegistry()
			originals := make(map[string]Cell)
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("e%d", i)
				_ = reg.Add(Entity{ID: id, CreatedAt: now})
				originals[id] = Cell{X: i%12 - 6, Y: i/12 - 6}
			}

			res := p.Reflow(g, reg, originals, ViewDay, now)
			s := res.GridSize
			if s*s < n+p.Slack {
				t.Errorf("grid %d too small for %d entities", s, n)
			}
			if s > p.MinSize && (s-1)*(s-1) >= n+p.Slack {
				t.Errorf("grid %d is not minimal for %d entities", s, n)
			}
			if res.Placed != n || len(reg.AllActive()) != n {
				t.Errorf("placed %d (active %d), want %d", res.Placed, len(reg.AllActive()), n)
			}
			assertUniqueInBounds(t, g, reg)
		})
	}
}

// TestReflowEmptyVisibleResetsGrid 没有可见实体时重置为最小网格
func TestReflowEmptyVisibleResetsGrid(t *testing.T) {
	now := date(2024, 6, 15)
	g := NewGrid(6)
	g.Fill()
	reg := NewRegistry()
	_ = reg.Add(Entity{ID: "old", CreatedAt: date(2020, 1, 1), Cell: Cell{2, 2}, Active: true})

	p := NewPlanner(MinGridSize, DefaultReflowSlack, rand.New(rand.NewSource(1)))
	res := p.Reflow(g, reg, map[string]Cell{"old": {2, 2}}, ViewDay, now)

	if res.GridSize != MinGridSize || g.Size() != MinGridSize {
		t.Errorf("grid size = %d, want %d", g.Size(), MinGridSize)
	}
	if g.GroundCount() != 9 {
		t.Errorf("GroundCount() = %d, want 9", g.GroundCount())
	}
	if len(reg.AllActive()) != 0 {
		t.Error("no entity should be active")
	}
	e, _ := reg.Get("old")
	if e.Cell != (Cell{2, 2}) {
		t.Errorf("hidden entity should keep its stale cell, got %v", e.Cell)
	}
}

// TestReflowAllRestoresOriginals 全部视图精确恢复原始格子
func TestReflowAllRestoresOriginals(t *testing.T) {
	now := date(2024, 6, 15)
	g := NewGrid(3)
	g.Fill()
	reg := NewRegistry()
	originals := map[string]Cell{"a": {-2, -2}, "b": {1, 1}, "c": {0, -1}}
	for _, id := range []string{"a", "b", "c"} {
		_ = reg.Add(Entity{ID: id, CreatedAt: now})
	}

	p := NewPlanner(MinGridSize, DefaultReflowSlack, rand.New(rand.NewSource(1)))
	res := p.Reflow(g, reg, originals, ViewAll, now)

	// (-2,-2) 不在 3x3 内，网格需要扩到 4
	if res.GridSize != 4 {
		t.Errorf("grid size = %d, want 4", res.GridSize)
	}
	for id, want := range originals {
		e, _ := reg.Get(id)
		if !e.Active || e.Cell != want {
			t.Errorf("%s: active=%v cell=%v, want active at %v", id, e.Active, e.Cell, want)
		}
	}
	assertUniqueInBounds(t, g, reg)
}
