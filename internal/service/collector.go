package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/circuitinfopro/circuitinfopro/internal/config"
	"github.com/circuitinfopro/circuitinfopro/internal/database"
	"github.com/circuitinfopro/circuitinfopro/internal/inventory"
	"github.com/circuitinfopro/circuitinfopro/internal/model"
	"github.com/circuitinfopro/circuitinfopro/pkg/cache"
	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

// RunRequest 一次批量采集请求
type RunRequest struct {
	Devices     []inventory.Device `json:"devices"`
	Credentials Credentials        `json:"credentials"`
	// Concurrent 覆盖配置的设备并发数；0 使用配置值
	Concurrent int `json:"concurrent,omitempty"`
	// Backend 报表后端覆盖：local | minio
	Backend string `json:"backend,omitempty"`
	// SiteFilter 仅用于运行记录展示
	SiteFilter string `json:"site_filter,omitempty"`
}

// RunSummary 一次运行的汇总结果
type RunSummary struct {
	RunID      string             `json:"run_id"`
	Stamp      string             `json:"stamp"`
	ReportPath string             `json:"report_path"`
	Reports    []*DeviceReport    `json:"reports"`
	Failed     []FailedDeviceInfo `json:"failed"`
	Duration   time.Duration      `json:"duration"`
}

// CollectorService 批量采集编排
// opener/cache 非空时每轮按当前配置重建采集器，使关键字热更新在下一轮生效
type CollectorService struct {
	cfg    *config.Config
	device *DeviceCollector
	opener SessionOpener
	cache  *cache.ConfigCache
	writer ReportWriter
}

// NewCollectorService 组装生产依赖（SSH 会话工厂、文件缓存、报表写入器）
func NewCollectorService(cfg *config.Config) (*CollectorService, error) {
	// 预构建一次以便启动期暴露配置错误
	cc := cache.New(cfg.Cache.Dir, cfg.Cache.Enabled)
	opener := NewSessionOpener(cfg)
	if _, err := NewDeviceCollector(cfg, opener, cc); err != nil {
		return nil, err
	}
	return &CollectorService{
		cfg:    cfg,
		opener: opener,
		cache:  cc,
		writer: NewReportWriter(cfg),
	}, nil
}

// NewCollectorServiceWith 注入依赖构造，供测试与定制使用
func NewCollectorServiceWith(cfg *config.Config, device *DeviceCollector, writer ReportWriter) *CollectorService {
	return &CollectorService{cfg: cfg, device: device, writer: writer}
}

// Run 执行一次批量采集
// 空设备清单立即报错；设备级失败只进失败清单，不中断运行；
// 结果按清单顺序缓冲汇总，与完成顺序无关
func (s *CollectorService) Run(ctx context.Context, req *RunRequest) (*RunSummary, error) {
	if len(req.Devices) == 0 {
		return nil, fmt.Errorf("device list is empty")
	}

	device := s.device
	if device == nil {
		var err error
		device, err = NewDeviceCollector(s.cfg, s.opener, s.cache)
		if err != nil {
			return nil, fmt.Errorf("invalid extract configuration: %w", err)
		}
	}

	runID := uuid.New().String()
	start := time.Now()
	stamp := start.Format("20060102_150405")
	s.recordRunStart(runID, req, start)
	s.logRun(runID, "info", fmt.Sprintf("Run started with %d devices", len(req.Devices)))

	concurrent := req.Concurrent
	if concurrent <= 0 {
		concurrent = s.cfg.Collector.Concurrent
	}
	if concurrent <= 0 {
		concurrent = 1
	}

	// 按清单顺序预留结果槽位；goroutine 不返回错误，单台设备不会取消整轮
	reports := make([]*DeviceReport, len(req.Devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrent)
	for i, dev := range req.Devices {
		i, dev := i, dev
		g.Go(func() error {
			reports[i] = device.Collect(gctx, dev, req.Credentials)
			return nil
		})
	}
	_ = g.Wait()

	var failed []FailedDeviceInfo
	for _, r := range reports {
		if r.Failed() {
			failed = append(failed, FailedDeviceInfo{
				Site:    r.Site,
				Host:    r.Host,
				Address: r.Address,
				Reason:  r.FailureReason,
			})
		}
	}

	reportPath, err := s.writer.WriteRun(ctx, stamp, req.Backend, reports, failed)
	if err != nil {
		s.recordRunEnd(runID, model.RunStatusFailed, reportPath, len(failed), err.Error(), start)
		return nil, fmt.Errorf("failed to write run report: %w", err)
	}

	status := model.RunStatusSuccess
	if len(failed) == len(reports) {
		status = model.RunStatusFailed
	} else if len(failed) > 0 {
		status = model.RunStatusPartial
	}
	s.recordRunEnd(runID, status, reportPath, len(failed), "", start)
	s.recordDevices(runID, reports)
	s.logRun(runID, "info", fmt.Sprintf("Run finished: %d collected, %d failed", len(reports)-len(failed), len(failed)))

	logger.Infof("Collection run %s finished: %d devices, %d failed, report at %s",
		runID, len(reports), len(failed), reportPath)

	return &RunSummary{
		RunID:      runID,
		Stamp:      stamp,
		ReportPath: reportPath,
		Reports:    reports,
		Failed:     failed,
		Duration:   time.Since(start),
	}, nil
}

// recordRunStart 写入运行记录；无数据库环境（纯 CLI/测试）时跳过
func (s *CollectorService) recordRunStart(runID string, req *RunRequest, start time.Time) {
	if database.GetDB() == nil {
		return
	}
	run := &model.Run{
		ID:          runID,
		CollectorID: s.cfg.Collector.ID,
		SiteFilter:  req.SiteFilter,
		DeviceCount: len(req.Devices),
		Status:      model.RunStatusRunning,
		StartTime:   start,
	}
	if err := database.WithRetry(func(db *gorm.DB) error {
		return db.Create(run).Error
	}, 3, 0); err != nil {
		logger.Warnf("Failed to record run start: %v", err)
	}
}

func (s *CollectorService) recordRunEnd(runID, status, reportPath string, failedCount int, errMsg string, start time.Time) {
	if database.GetDB() == nil {
		return
	}
	end := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"report_path":  reportPath,
		"failed_count": failedCount,
		"error_msg":    errMsg,
		"end_time":     end,
		"duration":     end.Sub(start).Milliseconds(),
	}
	if err := database.WithRetry(func(db *gorm.DB) error {
		return db.Model(&model.Run{}).Where("id = ?", runID).Updates(updates).Error
	}, 3, 0); err != nil {
		logger.Warnf("Failed to record run end: %v", err)
	}
}

// recordDevices 更新设备状态并落失败明细
func (s *CollectorService) recordDevices(runID string, reports []*DeviceReport) {
	if database.GetDB() == nil {
		return
	}
	now := time.Now()
	for _, r := range reports {
		status := model.DeviceStatusReachable
		if r.Failed() {
			status = model.DeviceStatusUnreachable
			failedRow := &model.FailedDevice{
				ID:      uuid.New().String(),
				RunID:   runID,
				Site:    r.Site,
				Host:    r.Host,
				Address: r.Address,
				Reason:  r.FailureReason,
			}
			if err := database.WithRetry(func(db *gorm.DB) error {
				return db.Create(failedRow).Error
			}, 3, 0); err != nil {
				logger.Warnf("Failed to record failed device %s: %v", r.Host, err)
			}
		}
		rec := map[string]interface{}{
			"site":        r.Site,
			"host":        r.Host,
			"status":      status,
			"last_run_id": runID,
			"last_check":  now,
		}
		if err := database.WithRetry(func(db *gorm.DB) error {
			res := db.Model(&model.DeviceRecord{}).Where("address = ?", r.Address).Updates(rec)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return db.Create(&model.DeviceRecord{
					ID:        uuid.New().String(),
					Site:      r.Site,
					Host:      r.Host,
					Address:   r.Address,
					Port:      22,
					Status:    status,
					LastRunID: runID,
					LastCheck: now,
				}).Error
			}
			return nil
		}, 3, 0); err != nil {
			logger.Warnf("Failed to record device %s: %v", r.Host, err)
		}
	}
}

func (s *CollectorService) logRun(runID, level, message string) {
	if database.GetDB() == nil {
		return
	}
	row := &model.RunLog{
		ID:      uuid.New().String(),
		RunID:   runID,
		Level:   level,
		Message: message,
	}
	if err := database.WithRetry(func(db *gorm.DB) error {
		return db.Create(row).Error
	}, 3, 0); err != nil {
		logger.Warnf("Failed to record run log: %v", err)
	}
}
