package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/circuitinfopro/circuitinfopro/internal/config"
	"github.com/circuitinfopro/circuitinfopro/internal/extract"
	"github.com/circuitinfopro/circuitinfopro/internal/inventory"
	"github.com/circuitinfopro/circuitinfopro/internal/util"
	"github.com/circuitinfopro/circuitinfopro/pkg/cache"
	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
	sshpkg "github.com/circuitinfopro/circuitinfopro/pkg/ssh"
)

// DeviceSession 远程会话协作方；错误文案原样作为设备失败原因
type DeviceSession interface {
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// SessionOpener 打开设备会话
type SessionOpener interface {
	Open(ctx context.Context, info *sshpkg.ConnectionInfo) (DeviceSession, error)
}

// sshSessionOpener 生产实现：池化 SSH 连接，登录后开启交互式 PTY 会话
// 相邻运行间同一设备复用连接，避免频繁登录触发设备限流
type sshSessionOpener struct {
	cfg  *config.Config
	pool *sshpkg.Pool
}

// NewSessionOpener 创建基于 pkg/ssh 连接池的会话工厂
func NewSessionOpener(cfg *config.Config) SessionOpener {
	return &sshSessionOpener{
		cfg: cfg,
		pool: sshpkg.NewPool(&sshpkg.PoolConfig{
			MaxIdle:     cfg.SSH.MaxSessions,
			IdleTimeout: 5 * time.Minute,
			SSHConfig: &sshpkg.Config{
				ConnectTimeout: cfg.SSH.ConnectTimeout,
				CommandTimeout: cfg.GetCommandTimeout(),
				KeepAlive:      cfg.SSH.KeepAliveInterval,
				MaxSessions:    cfg.SSH.MaxSessions,
			},
		}),
	}
}

func (o *sshSessionOpener) Open(ctx context.Context, info *sshpkg.ConnectionInfo) (DeviceSession, error) {
	client, err := o.pool.GetConnection(ctx, info)
	if err != nil {
		return nil, err
	}
	sess, err := client.OpenSession(ctx, o.cfg.GetCommandTimeout())
	if err != nil {
		_ = o.pool.CloseConnection(info)
		return nil, err
	}
	return &sshDeviceSession{pool: o.pool, info: info, sess: sess}, nil
}

type sshDeviceSession struct {
	pool *sshpkg.Pool
	info *sshpkg.ConnectionInfo
	sess *sshpkg.Session
}

func (s *sshDeviceSession) Run(ctx context.Context, command string) (string, error) {
	res, err := s.sess.Run(ctx, command)
	if err != nil {
		return "", err
	}
	logger.DebugCommandOutput(command, res.Output, 5)
	// 老旧设备的横幅/描述可能不是 UTF-8
	return util.RecoverUTF8(res.Output), nil
}

func (s *sshDeviceSession) Close() error {
	err := s.sess.Close()
	s.pool.ReleaseConnection(s.info)
	return err
}

// DeviceCollector 单台设备的采集与抽取流水线
type DeviceCollector struct {
	cfg        *config.Config
	classifier *extract.Classifier
	policy     *extract.PolicyExtractor
	opener     SessionOpener
	cache      *cache.ConfigCache
}

// NewDeviceCollector 构造采集器；分类与提取参数取自配置
func NewDeviceCollector(cfg *config.Config, opener SessionOpener, cc *cache.ConfigCache) (*DeviceCollector, error) {
	classifier, err := extract.NewClassifier(extract.ClassifierConfig{
		Keywords:            cfg.Extract.CircuitKeywords,
		TunnelPattern:       cfg.Extract.TunnelPattern,
		BridgeDomainPattern: cfg.Extract.BridgeDomainPattern,
		TrunkVlanMarker:     cfg.Extract.TrunkVlanMarker,
	})
	if err != nil {
		return nil, err
	}
	policy, err := extract.NewPolicyExtractor(cfg.Extract.PolicyMapPrefix)
	if err != nil {
		return nil, err
	}
	return &DeviceCollector{
		cfg:        cfg,
		classifier: classifier,
		policy:     policy,
		opener:     opener,
		cache:      cc,
	}, nil
}

// Collect 采集一台设备并产出报告
// 设备级失败（连接/认证/命令执行）只记入 FailureReason，不向上抛错；
// 单 VRF 的 ARP/明细拉取失败表示为缺失数据，不判设备失败
func (d *DeviceCollector) Collect(ctx context.Context, dev inventory.Device, creds Credentials) *DeviceReport {
	log := logger.WithDevice(dev.Host, dev.Address)

	fail := func(stage string, err error) *DeviceReport {
		log.Warnf("Device collection failed at %s: %v", stage, err)
		return &DeviceReport{
			Site:          dev.Site,
			Host:          dev.Host,
			Address:       dev.Address,
			FailureReason: err.Error(),
		}
	}

	port := creds.Port
	if port <= 0 {
		port = 22
	}
	sess, err := d.opener.Open(ctx, &sshpkg.ConnectionInfo{
		Host:     dev.Address,
		Port:     port,
		Username: creds.Username,
		Password: creds.Password,
	})
	if err != nil {
		return fail("connect", err)
	}
	defer sess.Close()

	cmds := d.cfg.Collector.Commands
	if _, err := sess.Run(ctx, cmds.DisablePaging); err != nil {
		return fail(cmds.DisablePaging, err)
	}

	// 运行配置走读取穿透缓存：命中则本轮不再下发 show run
	cfgText, cached := d.cache.Get(dev.Host, dev.Address)
	if !cached {
		cfgText, err = sess.Run(ctx, cmds.RunningConfig)
		if err != nil {
			return fail(cmds.RunningConfig, err)
		}
		if err := d.cache.Put(dev.Host, dev.Address, cfgText); err != nil {
			log.Warnf("Failed to cache running-config: %v", err)
		}
	}

	vrfSummary, err := sess.Run(ctx, cmds.VrfSummary)
	if err != nil {
		return fail(cmds.VrfSummary, err)
	}
	vrfNames := extract.ParseVRFNames(vrfSummary)

	arpByVRF := make(map[string]string, len(vrfNames))
	detailByVRF := make(map[string]string, len(vrfNames))
	for _, v := range vrfNames {
		arpCmd := fmt.Sprintf(cmds.ArpVrf, v)
		if out, err := sess.Run(ctx, arpCmd); err == nil {
			arpByVRF[v] = out
		} else {
			log.Warnf("Per-VRF fetch failed, data absent [%s]: %v", arpCmd, err)
		}
		detCmd := fmt.Sprintf(cmds.VrfDetail, v)
		if out, err := sess.Run(ctx, detCmd); err == nil {
			detailByVRF[v] = out
		} else {
			log.Warnf("Per-VRF fetch failed, data absent [%s]: %v", detCmd, err)
		}
	}

	neighborDetail, err := sess.Run(ctx, cmds.NeighborCDP)
	if err != nil {
		return fail(cmds.NeighborCDP, err)
	}

	// 抽取为纯文本处理，此后不再访问设备
	blocks, index := extract.SegmentText(cfgText)
	selected := d.classifier.Select(blocks, index)
	circuitText := extract.SelectionText(selected)
	cfgLines := strings.Split(strings.ReplaceAll(cfgText, "\r\n", "\n"), "\n")
	policyMaps := d.policy.ExtractReferenced(circuitText, cfgLines)

	log.Infof("Device collected: %d circuit blocks, %d vrfs, %d policy-maps",
		len(selected), len(vrfNames), len(policyMaps))

	return &DeviceReport{
		Site:           dev.Site,
		Host:           dev.Host,
		Address:        dev.Address,
		CircuitBlocks:  selected,
		VRFSummary:     vrfSummary,
		VRFNames:       vrfNames,
		ARPByVRF:       arpByVRF,
		DetailByVRF:    detailByVRF,
		PolicyMaps:     policyMaps,
		NeighborDetail: neighborDetail,
	}
}
