package config

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

const (
	defaultSanctuaryConfigPath = "defaults/sanctuary.yaml"
	defaultCatalogPath         = "defaults/catalog.yaml"
)

// SanctuaryConfig 保护区配置
//
// 配置文件位置: data/sanctuary.yaml（未提供时使用内嵌默认值）
type SanctuaryConfig struct {
	Grid      GridConfig      `yaml:"grid"`
	Placement PlacementConfig `yaml:"placement"`
	Viewport  ViewportConfig  `yaml:"viewport"`
	Isometric IsometricConfig `yaml:"isometric"`
	Window    WindowConfig    `yaml:"window"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
}

// GridConfig 网格参数
type GridConfig struct {
	// MinSize 网格最小边长（初始尺寸）
	MinSize int `yaml:"minSize"`

	// ReflowSlack 受限视图重排时额外保留的空格数
	ReflowSlack int `yaml:"reflowSlack"`
}

// PlacementConfig 放置参数
type PlacementConfig struct {
	// MaxAttempts 单次放置最多允许的网格扩张次数
	MaxAttempts int `yaml:"maxAttempts"`
}

// ViewportConfig 视口缩放参数（世界单位）
type ViewportConfig struct {
	Padding   float64 `yaml:"padding"`
	MinSize   float64 `yaml:"minSize"`
	MaxSize   float64 `yaml:"maxSize"`
	Smoothing float64 `yaml:"smoothing"`
	Epsilon   float64 `yaml:"epsilon"`
	Aspect    float64 `yaml:"aspect"`
}

// IsometricConfig 等距投影参数
type IsometricConfig struct {
	TileWidth     float64 `yaml:"tileWidth"`
	TileHeight    float64 `yaml:"tileHeight"`
	EntityYOffset float64 `yaml:"entityYOffset"`
}

// WindowConfig 桌面窗口参数
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// ServerConfig HTTP 服务参数
type ServerConfig struct {
	ListenAddr        string   `yaml:"listenAddr"`
	CORSOrigins       []string `yaml:"corsOrigins"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond"`
	Burst             int      `yaml:"burst"`
}

// StorageConfig 存档参数
type StorageConfig struct {
	// AppName gdata 存储目录名
	AppName string `yaml:"appName"`
}

// DefaultSanctuaryConfig 返回内嵌的默认配置
func DefaultSanctuaryConfig() *SanctuaryConfig {
	data, err := defaultsFS.ReadFile(defaultSanctuaryConfigPath)
	if err != nil {
		cfg := &SanctuaryConfig{}
		cfg.applyDefaults()
		return cfg
	}
	cfg, err := ParseSanctuaryConfig(data)
	if err != nil {
		cfg = &SanctuaryConfig{}
		cfg.applyDefaults()
	}
	return cfg
}

// LoadSanctuaryConfig 加载保护区配置
//
// 参数:
//   - path: 配置文件路径，为空时返回内嵌默认配置
//
// 返回:
//   - *SanctuaryConfig: 已补全默认值并通过验证的配置
//   - error: 读取、解析或验证失败时返回错误
func LoadSanctuaryConfig(path string) (*SanctuaryConfig, error) {
	if path == "" {
		return DefaultSanctuaryConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sanctuary config: %w", err)
	}
	return ParseSanctuaryConfig(data)
}

// ParseSanctuaryConfig 从 YAML 数据解析配置
func ParseSanctuaryConfig(data []byte) (*SanctuaryConfig, error) {
	var cfg SanctuaryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sanctuary config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sanctuary config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults 为缺失的可选字段设置默认值
func (c *SanctuaryConfig) applyDefaults() {
	if c.Grid.MinSize == 0 {
		c.Grid.MinSize = 3
	}
	if c.Grid.ReflowSlack == 0 {
		c.Grid.ReflowSlack = 1
	}
	if c.Placement.MaxAttempts == 0 {
		c.Placement.MaxAttempts = 10
	}

	if c.Viewport.MinSize == 0 {
		c.Viewport.MinSize = 160
	}
	if c.Viewport.MaxSize == 0 {
		c.Viewport.MaxSize = 2400
	}
	if c.Viewport.Smoothing == 0 {
		c.Viewport.Smoothing = 4
	}
	if c.Viewport.Epsilon == 0 {
		c.Viewport.Epsilon = 0.5
	}
	if c.Viewport.Aspect == 0 {
		c.Viewport.Aspect = 1.6
	}

	if c.Isometric.TileWidth == 0 {
		c.Isometric.TileWidth = 96
	}
	if c.Isometric.TileHeight == 0 {
		c.Isometric.TileHeight = 48
	}

	if c.Window.Width == 0 {
		c.Window.Width = 1024
	}
	if c.Window.Height == 0 {
		c.Window.Height = 640
	}
	if c.Window.Title == "" {
		c.Window.Title = "Sanctuary"
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.RequestsPerSecond == 0 {
		c.Server.RequestsPerSecond = 10
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = 20
	}

	if c.Storage.AppName == "" {
		c.Storage.AppName = "sanctuary"
	}
}

// Validate 验证配置有效性
//
// 检查：
//   - 网格最小边长至少为 1，重排余量和放置次数不能为负
//   - 视口尺寸范围有效且平滑参数为正
//   - 等距格子尺寸为正
//
// 返回:
//   - error: 验证失败时返回错误，成功返回 nil
func (c *SanctuaryConfig) Validate() error {
	if c.Grid.MinSize < 1 {
		return fmt.Errorf("grid.minSize must be >= 1, got %d", c.Grid.MinSize)
	}
	if c.Grid.ReflowSlack < 0 {
		return fmt.Errorf("grid.reflowSlack must be >= 0, got %d", c.Grid.ReflowSlack)
	}
	if c.Placement.MaxAttempts < 0 {
		return fmt.Errorf("placement.maxAttempts must be >= 0, got %d", c.Placement.MaxAttempts)
	}

	if c.Viewport.MinSize <= 0 || c.Viewport.MinSize > c.Viewport.MaxSize {
		return fmt.Errorf("viewport size range invalid: min(%.1f) max(%.1f)",
			c.Viewport.MinSize, c.Viewport.MaxSize)
	}
	if c.Viewport.Padding < 0 {
		return fmt.Errorf("viewport.padding must be >= 0, got %.1f", c.Viewport.Padding)
	}
	if c.Viewport.Smoothing <= 0 || c.Viewport.Epsilon <= 0 || c.Viewport.Aspect <= 0 {
		return fmt.Errorf("viewport smoothing, epsilon and aspect must be positive")
	}

	if c.Isometric.TileWidth <= 0 || c.Isometric.TileHeight <= 0 {
		return fmt.Errorf("isometric tile size must be positive, got %.1fx%.1f",
			c.Isometric.TileWidth, c.Isometric.TileHeight)
	}

	if c.Server.RequestsPerSecond < 0 || c.Server.Burst < 0 {
		return fmt.Errorf("server rate limit must be non-negative")
	}
	return nil
}
