package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/circuitinfopro/circuitinfopro/internal/config"
	"github.com/circuitinfopro/circuitinfopro/internal/inventory"
	"github.com/circuitinfopro/circuitinfopro/internal/service"
	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

// auto_run 免服务的批量采集入口：读取设备清单 CSV，逐站点采集并落报表
func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	devicesPath := flag.String("devices", "", "设备清单CSV路径（必填）")
	sites := flag.String("sites", "", "站点过滤，逗号分隔；留空采集全部站点")
	user := flag.String("user", "", "SSH用户名（必填）")
	pass := flag.String("pass", "", "SSH密码；留空时读取环境变量 CIRCUIT_COLLECTOR_PASSWORD")
	port := flag.Int("port", 22, "SSH端口")
	concurrent := flag.Int("concurrent", 0, "并发设备数；0 使用配置值")
	backend := flag.String("backend", "", "报表后端覆盖：local | minio")
	flag.Parse()

	if *devicesPath == "" || *user == "" {
		flag.Usage()
		os.Exit(2)
	}
	password := *pass
	if password == "" {
		password = os.Getenv("CIRCUIT_COLLECTOR_PASSWORD")
	}
	if password == "" {
		fmt.Println("Password required: use -pass or CIRCUIT_COLLECTOR_PASSWORD")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	devices, err := inventory.LoadCSV(*devicesPath)
	if err != nil {
		fmt.Printf("Failed to load device inventory: %v\n", err)
		os.Exit(1)
	}

	var siteFilter []string
	if *sites != "" {
		for _, s := range strings.Split(*sites, ",") {
			if s = strings.TrimSpace(s); s != "" {
				siteFilter = append(siteFilter, s)
			}
		}
		devices = inventory.FilterSites(devices, siteFilter)
	}
	if len(devices) == 0 {
		fmt.Println("No devices matched the inventory/site filter")
		os.Exit(1)
	}

	svc, err := service.NewCollectorService(cfg)
	if err != nil {
		fmt.Printf("Failed to create collector service: %v\n", err)
		os.Exit(1)
	}

	summary, err := svc.Run(context.Background(), &service.RunRequest{
		Devices: devices,
		Credentials: service.Credentials{
			Username: *user,
			Password: password,
			Port:     *port,
		},
		Concurrent: *concurrent,
		Backend:    *backend,
		SiteFilter: strings.Join(siteFilter, ","),
	})
	if err != nil {
		fmt.Printf("Collection run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s finished in %s\n", summary.RunID, summary.Duration.Round(0))
	fmt.Printf("  Devices:   %d\n", len(summary.Reports))
	fmt.Printf("  Collected: %d\n", len(summary.Reports)-len(summary.Failed))
	fmt.Printf("  Failed:    %d\n", len(summary.Failed))
	for _, f := range summary.Failed {
		fmt.Printf("    %s/%s (%s): %s\n", f.Site, f.Host, f.Address, f.Reason)
	}
	fmt.Printf("  Report:    %s\n", summary.ReportPath)

	if len(summary.Failed) == len(summary.Reports) {
		os.Exit(1)
	}
}
