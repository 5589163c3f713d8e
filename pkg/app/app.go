// Package app 提供保护区查看器的核心包装器
//
// 该包将启动逻辑从 main 包提取出来：加载存档、恢复布局、
// 创建场景，并可选地在同一进程内启动 HTTP 接口。
package app

import (
	"context"
	"image/color"
	"io"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/decker502/sanctuary/pkg/api"
	"github.com/decker502/sanctuary/pkg/config"
	"github.com/decker502/sanctuary/pkg/game"
	"github.com/decker502/sanctuary/pkg/scenes"
)

// Config 应用启动配置
type Config struct {
	// Verbose 启用详细日志输出
	Verbose bool
	// Sanctuary 保护区配置，为 nil 时使用内嵌默认配置
	Sanctuary *config.SanctuaryConfig
	// Catalog 动物目录，为 nil 时使用内嵌默认目录
	Catalog *config.Catalog
	// ServeAddr 非空时在该地址同时提供 HTTP 接口
	ServeAddr string
}

// App 实现 ebiten.Game 接口
type App struct {
	sceneManager *game.SceneManager
	service      *game.SanctuaryService
	window       config.WindowConfig
	verbose      bool

	cancelServer context.CancelFunc
	serverDone   chan error

	pendingWindowSizeReset   bool
	windowSizeResetCountdown int
}

// NewApp 创建并初始化查看器
func NewApp(cfg Config) (*App, error) {
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
		log.SetFlags(0)
	}

	sanctuaryCfg := cfg.Sanctuary
	if sanctuaryCfg == nil {
		sanctuaryCfg = config.DefaultSanctuaryConfig()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		c, err := config.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		catalog = c
	}

	state := game.NewGameState(sanctuaryCfg.Storage.AppName)
	service := game.NewSanctuaryService(game.ServiceOptions{
		Config:  sanctuaryCfg,
		Catalog: catalog,
		State:   state,
	})
	report := service.Restore()
	log.Printf("[App] Restored %d entities (%d unknown, %d failed)", report.Placed, report.Unknown, report.Failed)

	sceneManager := game.NewSceneManager()
	sceneManager.SwitchTo(scenes.NewSanctuaryScene(service, sanctuaryCfg.Window.Width, sanctuaryCfg.Window.Height))

	a := &App{
		sceneManager: sceneManager,
		service:      service,
		window:       sanctuaryCfg.Window,
		verbose:      cfg.Verbose,
	}

	if cfg.ServeAddr != "" {
		serverCfg := sanctuaryCfg.Server
		serverCfg.ListenAddr = cfg.ServeAddr
		ctx, cancel := context.WithCancel(context.Background())
		a.cancelServer = cancel
		a.serverDone = make(chan error, 1)
		server := api.NewServer(service, serverCfg, cfg.Verbose)
		go func() {
			a.serverDone <- server.Run(ctx)
		}()
		log.Printf("[App] HTTP interface enabled on %s", cfg.ServeAddr)
	}

	if service.Fullscreen() {
		ebiten.SetFullscreen(true)
	}
	return a, nil
}

// Update 更新逻辑，每个 tick 调用一次
func (a *App) Update() error {
	if ebiten.IsWindowBeingClosed() {
		a.Close()
		return ebiten.Termination
	}

	// 退出全屏后需要等待几帧才能正确设置窗口大小
	if a.pendingWindowSizeReset {
		a.windowSizeResetCountdown--
		if a.windowSizeResetCountdown <= 0 {
			ebiten.SetWindowSize(a.window.Width, a.window.Height)
			a.pendingWindowSizeReset = false
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		if ebiten.IsFullscreen() {
			ebiten.SetFullscreen(false)
			if ebiten.IsWindowMaximized() || ebiten.IsWindowMinimized() {
				ebiten.RestoreWindow()
			}
			a.pendingWindowSizeReset = true
			a.windowSizeResetCountdown = 3
			a.service.SetFullscreen(false)
		} else {
			ebiten.SetFullscreen(true)
			a.service.SetFullscreen(true)
		}
	}

	if a.serverDone != nil {
		select {
		case err := <-a.serverDone:
			a.serverDone = nil
			if err != nil {
				log.Printf("[App] HTTP interface stopped: %v", err)
			}
		default:
		}
	}

	return a.sceneManager.Update(1.0 / float64(ebiten.TPS()))
}

// Draw 绘制当前场景
func (a *App) Draw(screen *ebiten.Image) {
	a.sceneManager.Draw(screen)
}

// DrawFinalScreen 全屏时用黑色填充两侧并使用线性滤波缩放
func (a *App) DrawFinalScreen(screen ebiten.FinalScreen, offscreen *ebiten.Image, geoM ebiten.GeoM) {
	screen.Fill(color.Black)
	op := &ebiten.DrawImageOptions{}
	op.GeoM = geoM
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(offscreen, op)
}

// Layout 逻辑屏幕尺寸跟随窗口，场景据此更新视口宽高比
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth <= 0 || outsideHeight <= 0 {
		return a.window.Width, a.window.Height
	}
	a.sceneManager.Resize(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}

// Close 保存状态并停止 HTTP 接口，可重复调用
func (a *App) Close() {
	a.sceneManager.SaveOnExit()
	if a.cancelServer != nil {
		a.cancelServer()
		a.cancelServer = nil
	}
}

// GetSceneManager 返回场景管理器
func (a *App) GetSceneManager() *game.SceneManager {
	return a.sceneManager
}

// IsVerbose 是否启用了详细日志
func (a *App) IsVerbose() bool {
	return a.verbose
}
