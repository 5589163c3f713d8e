package config

import (
	"fmt"
	"image/color"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/decker502/sanctuary/pkg/sanctuary"
)

// AnimalEntry 目录中的一种动物
type AnimalEntry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"` // #rrggbb
}

// GraveEntry 墓碑的外观
type GraveEntry struct {
	Color string `yaml:"color"`
}

// Catalog 动物目录
//
// 配置文件位置: data/catalog.yaml
// 实现 sanctuary.Catalog：动物需要在目录中登记，墓碑总能解析。
type Catalog struct {
	Animals []AnimalEntry `yaml:"animals"`
	Grave   GraveEntry    `yaml:"grave"`

	byID map[string]AnimalEntry
}

// DefaultCatalog 返回内嵌的默认目录
func DefaultCatalog() (*Catalog, error) {
	data, err := defaultsFS.ReadFile(defaultCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded catalog: %w", err)
	}
	return ParseCatalog(data)
}

// LoadCatalog 从文件加载动物目录，路径为空时使用内嵌默认目录
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog 解析并验证目录
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c.byID = make(map[string]AnimalEntry, len(c.Animals))
	for i, a := range c.Animals {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return nil, fmt.Errorf("invalid catalog: animal #%d has empty id", i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("invalid catalog: duplicate animal id %q", id)
		}
		if a.Color != "" {
			if _, err := ParseHexColor(a.Color); err != nil {
				return nil, fmt.Errorf("invalid catalog: animal %q: %w", id, err)
			}
		}
		a.ID = id
		if a.Name == "" {
			a.Name = id
		}
		c.Animals[i] = a
		c.byID[id] = a
	}
	return &c, nil
}

// Resolve 实现 sanctuary.Catalog
func (c *Catalog) Resolve(id string, category sanctuary.Category) bool {
	if category == sanctuary.CategoryMarker {
		return true
	}
	_, ok := c.byID[id]
	return ok
}

// Animal 按ID查找动物
func (c *Catalog) Animal(id string) (AnimalEntry, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// AnimalIDs 返回所有动物ID（按字母排序）
func (c *Catalog) AnimalIDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ColorOf 返回实体的显示颜色，未配置时使用灰色
func (c *Catalog) ColorOf(id string, category sanctuary.Category) color.RGBA {
	fallback := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	hex := c.Grave.Color
	if category == sanctuary.CategoryAnimal {
		a, ok := c.byID[id]
		if !ok {
			return fallback
		}
		hex = a.Color
	}
	clr, err := ParseHexColor(hex)
	if err != nil {
		return fallback
	}
	return clr
}

// ParseHexColor 解析 #rrggbb 颜色
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("color %q must be #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
