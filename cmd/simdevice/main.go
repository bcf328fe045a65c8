package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
	"github.com/circuitinfopro/circuitinfopro/simulate"
)

// simdevice 独立运行的模拟设备服务，供联调与演示使用
func main() {
	configPath := flag.String("config", "simulate/simulate.yaml", "模拟配置路径")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: "debug", Output: "console"}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := simulate.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load simulate config: %v\n", err)
		os.Exit(1)
	}

	srv, err := simulate.Start(cfg)
	if err != nil {
		fmt.Printf("Failed to start simulate server: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Simulated devices listening on %s\n", srv.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	srv.Stop()
}
