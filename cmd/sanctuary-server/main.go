// Package main 是保护区的无界面 HTTP 服务
//
// Usage:
//
//	go run ./cmd/sanctuary-server [flags]
//
// Flags:
//
//	--config <path>    保护区配置文件（默认使用内嵌配置）
//	--catalog <path>   动物目录文件（默认使用内嵌目录）
//	--addr <addr>      监听地址，覆盖配置文件中的 server.listenAddr
//	--app <name>       gdata 存储目录名，覆盖配置文件中的 storage.appName
//	--verbose          输出请求日志
//
// 与查看器共享同一个 gdata 存储，但两者不应同时运行。
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/decker502/sanctuary/pkg/api"
	"github.com/decker502/sanctuary/pkg/config"
	"github.com/decker502/sanctuary/pkg/game"
)

var (
	configFlag  = flag.String("config", "", "Path to sanctuary config YAML")
	catalogFlag = flag.String("catalog", "", "Path to animal catalog YAML")
	addrFlag    = flag.String("addr", "", "Listen address (overrides config)")
	appFlag     = flag.String("app", "", "gdata app name (overrides config)")
	verboseFlag = flag.Bool("verbose", false, "Log every HTTP request")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadSanctuaryConfig(*configFlag)
	if err != nil {
		log.Fatalf("[Server] %v", err)
	}
	if *addrFlag != "" {
		cfg.Server.ListenAddr = *addrFlag
	}
	if *appFlag != "" {
		cfg.Storage.AppName = *appFlag
	}

	catalog, err := config.LoadCatalog(*catalogFlag)
	if err != nil {
		log.Fatalf("[Server] %v", err)
	}
	log.Printf("[Server] Catalog loaded: %d animals", len(catalog.Animals))

	state := game.NewGameState(cfg.Storage.AppName)
	if !state.IsPersistent() {
		log.Printf("[Server] Warning: storage unavailable, changes will not survive a restart")
	}

	service := game.NewSanctuaryService(game.ServiceOptions{
		Config:  cfg,
		Catalog: catalog,
		State:   state,
	})
	report := service.Restore()
	log.Printf("[Server] Restored %d entities", report.Placed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(service, cfg.Server, *verboseFlag)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("[Server] %v", err)
	}
	log.Printf("[Server] Stopped")
}
