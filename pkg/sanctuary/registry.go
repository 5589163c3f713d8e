package sanctuary

import (
	"fmt"
	"time"
)

// Category 实体类别
type Category int

const (
	// CategoryAnimal 孵化出的动物
	CategoryAnimal Category = iota
	// CategoryMarker 放弃计时后留下的墓碑
	CategoryMarker
)

// String 返回类别名称
func (c Category) String() string {
	switch c {
	case CategoryAnimal:
		return "animal"
	case CategoryMarker:
		return "marker"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Entity 网格上的一个收集物
type Entity struct {
	ID        string
	Category  Category
	Cell      Cell
	CreatedAt time.Time // 仅精确到日，用于时间窗口过滤
	Fresh     bool      // 是否在本次进程生命周期内解锁
	Active    bool      // 是否占用格子（非活跃实体不参与占用和渲染）
}

// Registry 按注册顺序保存所有实体
//
// 不变量：任意两个活跃实体不会占用同一个格子。
type Registry struct {
	order    []*Entity
	byID     map[string]*Entity
	occupied map[Cell]string // 活跃实体的格子 → 实体ID
}

// NewRegistry 创建空的实体注册表
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Entity),
		occupied: make(map[Cell]string),
	}
}

// Exists 判断实体是否已注册
func (r *Registry) Exists(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Get 返回实体的副本
func (r *Registry) Get(id string) (Entity, bool) {
	e, ok := r.byID[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Len 返回已注册实体数量
func (r *Registry) Len() int {
	return len(r.order)
}

// Add 注册新实体
//
// 返回：
//   - error: ID 已存在，或实体为活跃状态但格子已被其他活跃实体占用
func (r *Registry) Add(e Entity) error {
	if r.Exists(e.ID) {
		return fmt.Errorf("entity %q already registered", e.ID)
	}
	if e.Active {
		if owner, taken := r.occupied[e.Cell]; taken {
			return fmt.Errorf("cell %v already occupied by %q", e.Cell, owner)
		}
	}

	entity := e
	r.order = append(r.order, &entity)
	r.byID[entity.ID] = &entity
	if entity.Active {
		r.occupied[entity.Cell] = entity.ID
	}
	return nil
}

// SetActive 更新实体的格子和活跃状态
//
// 返回：
//   - error: 实体不存在，或目标格子被其他活跃实体占用
func (r *Registry) SetActive(id string, cell Cell, active bool) error {
	e, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("entity %q not registered", id)
	}
	if active {
		if owner, taken := r.occupied[cell]; taken && owner != id {
			return fmt.Errorf("cell %v already occupied by %q", cell, owner)
		}
	}

	if e.Active && r.occupied[e.Cell] == id {
		delete(r.occupied, e.Cell)
	}
	e.Cell = cell
	e.Active = active
	if active {
		r.occupied[cell] = id
	}
	return nil
}

// DeactivateAll 将所有实体设置为非活跃，保留其旧格子
func (r *Registry) DeactivateAll() {
	for _, e := range r.order {
		e.Active = false
	}
	r.occupied = make(map[Cell]string)
}

// IsOccupied 判断格子是否被活跃实体占用
func (r *Registry) IsOccupied(c Cell) bool {
	_, ok := r.occupied[c]
	return ok
}

// All 按注册顺序返回所有实体的副本
func (r *Registry) All() []Entity {
	out := make([]Entity, 0, len(r.order))
	for _, e := range r.order {
		out = append(out, *e)
	}
	return out
}

// AllActive 按注册顺序返回所有活跃实体的副本
func (r *Registry) AllActive() []Entity {
	out := make([]Entity, 0, len(r.occupied))
	for _, e := range r.order {
		if e.Active {
			out = append(out, *e)
		}
	}
	return out
}
