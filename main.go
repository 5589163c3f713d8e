// Package main 是保护区查看器
//
// Usage:
//
//	go run . [flags]
//
// Flags:
//
//	--config <path>    保护区配置文件（默认使用内嵌配置）
//	--catalog <path>   动物目录文件（默认使用内嵌目录）
//	--serve <addr>     同时在该地址提供 HTTP 接口，例如 :8080
//	--verbose          输出详细日志
//
// Controls:
//
//	0-4 / A D W M Y   切换视图（全部、日、周、月、年）
//	H                 随机孵化一只动物
//	G                 放置一个墓碑
//	R                 重新排列当前视图
//	F11               切换全屏
package main

import (
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/decker502/sanctuary/pkg/app"
	"github.com/decker502/sanctuary/pkg/config"
)

var (
	configFlag  = flag.String("config", "", "Path to sanctuary config YAML")
	catalogFlag = flag.String("catalog", "", "Path to animal catalog YAML")
	serveFlag   = flag.String("serve", "", "Also serve the HTTP interface on this address")
	verboseFlag = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadSanctuaryConfig(*configFlag)
	if err != nil {
		log.Fatal(err)
	}
	catalog, err := config.LoadCatalog(*catalogFlag)
	if err != nil {
		log.Fatal(err)
	}

	a, err := app.NewApp(app.Config{
		Verbose:   *verboseFlag,
		Sanctuary: cfg,
		Catalog:   catalog,
		ServeAddr: *serveFlag,
	})
	if err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowSize(cfg.Window.Width, cfg.Window.Height)
	ebiten.SetWindowTitle(cfg.Window.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)

	if err := ebiten.RunGame(a); err != nil {
		log.Fatal(err)
	}
}
