package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circuitinfopro/circuitinfopro/internal/config"
	"github.com/circuitinfopro/circuitinfopro/internal/inventory"
	"github.com/circuitinfopro/circuitinfopro/pkg/cache"
	sshpkg "github.com/circuitinfopro/circuitinfopro/pkg/ssh"
)

const sampleConfig = `hostname r1
interface Tunnel1
 description ewans primary
 service-policy output policy-map qos-wan
interface GigabitEthernet0/1
 description uplink
policy-map qos-wan
 class realtime
  priority level 1
`

const sampleVRFSummary = `  Name     Default RD   Protocols   Interfaces
  CUST     65000:1      ipv4        Gi0/0/1
`

// fakeSession 脚本化会话：记录下发的命令，按表返回输出
type fakeSession struct {
	mu       sync.Mutex
	commands []string
	outputs  map[string]string
	failOn   map[string]error
	closed   bool
}

func (s *fakeSession) Run(_ context.Context, command string) (string, error) {
	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.mu.Unlock()
	if err, ok := s.failOn[command]; ok {
		return "", err
	}
	return s.outputs[command], nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSession) ran(command string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.commands {
		if c == command {
			return true
		}
	}
	return false
}

// fakeOpener 按设备地址路由会话；openErr 模拟连接/认证失败
type fakeOpener struct {
	sessions map[string]*fakeSession
	openErr  map[string]error
}

func (o *fakeOpener) Open(_ context.Context, info *sshpkg.ConnectionInfo) (DeviceSession, error) {
	if err, ok := o.openErr[info.Host]; ok {
		return nil, err
	}
	if s, ok := o.sessions[info.Host]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no session scripted for %s", info.Host)
}

func healthySession() *fakeSession {
	return &fakeSession{
		outputs: map[string]string{
			"terminal length 0":        "",
			"show run":                 sampleConfig,
			"show vrf":                 sampleVRFSummary,
			"show ip arp vrf CUST":     "Internet  10.1.1.2  0  aabb.cc00.0100  ARPA  Gi0/0/1",
			"show ip vrf CUST":         "  CUST  65000:1  Gi0/0/1",
			"show cdp neighbor detail": "Device ID: neighbor-sw1",
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Collector: config.CollectorConfig{
			Concurrent: 2,
			Commands: config.CommandsConfig{
				DisablePaging: "terminal length 0",
				RunningConfig: "show run",
				VrfSummary:    "show vrf",
				ArpVrf:        "show ip arp vrf %s",
				VrfDetail:     "show ip vrf %s",
				NeighborCDP:   "show cdp neighbor detail",
			},
		},
		Extract: config.ExtractConfig{
			CircuitKeywords:     []string{"ewans", "comcast"},
			TunnelPattern:       `^interface\s+Tunnel`,
			BridgeDomainPattern: `bridge-domain\s+(\d+)`,
			TrunkVlanMarker:     "switchport trunk allowed vlan",
			PolicyMapPrefix:     "qos-",
		},
		Report: config.ReportConfig{
			Backend:        "local",
			BaseDir:        t.TempDir(),
			Prefix:         "circuit_info",
			MkdirIfMissing: true,
		},
		Cache: config.CacheConfig{Enabled: true, Dir: t.TempDir()},
	}
}

func newTestService(t *testing.T, cfg *config.Config, opener SessionOpener) *CollectorService {
	t.Helper()
	device, err := NewDeviceCollector(cfg, opener, cache.New(cfg.Cache.Dir, cfg.Cache.Enabled))
	require.NoError(t, err)
	return NewCollectorServiceWith(cfg, device, NewReportWriter(cfg))
}

// TestRunPerDeviceIsolation 第二台设备认证失败不影响其余设备
func TestRunPerDeviceIsolation(t *testing.T) {
	cfg := testConfig(t)
	opener := &fakeOpener{
		sessions: map[string]*fakeSession{
			"10.0.0.1": healthySession(),
			"10.0.0.3": healthySession(),
		},
		openErr: map[string]error{
			"10.0.0.2": fmt.Errorf("ssh: unable to authenticate"),
		},
	}
	svc := newTestService(t, cfg, opener)

	summary, err := svc.Run(context.Background(), &RunRequest{
		Devices: []inventory.Device{
			{Site: "HQ", Host: "r1", Address: "10.0.0.1"},
			{Site: "HQ", Host: "r2", Address: "10.0.0.2"},
			{Site: "Branch", Host: "r3", Address: "10.0.0.3"},
		},
		Credentials: Credentials{Username: "admin", Password: "pw"},
	})
	require.NoError(t, err)
	require.Len(t, summary.Reports, 3)

	assert.False(t, summary.Reports[0].Failed())
	assert.NotEmpty(t, summary.Reports[0].CircuitBlocks, "设备1应有电路内容")
	assert.False(t, summary.Reports[2].Failed())
	assert.NotEmpty(t, summary.Reports[2].CircuitBlocks, "设备3应有电路内容")

	// 失败设备只出现在失败清单，且不携带内容
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "r2", summary.Failed[0].Host)
	assert.Contains(t, summary.Failed[0].Reason, "authenticate")
	assert.Empty(t, summary.Reports[1].CircuitBlocks)
	assert.Empty(t, summary.Reports[1].VRFNames)

	// 报表目录：设备1/3 有文档，设备2 无；失败清单含设备2
	runDir := summary.ReportPath
	assert.FileExists(t, filepath.Join(runDir, "HQ", "r1_10.0.0.1.txt"))
	assert.FileExists(t, filepath.Join(runDir, "Branch", "r3_10.0.0.3.txt"))
	assert.NoFileExists(t, filepath.Join(runDir, "HQ", "r2_10.0.0.2.txt"))

	failText, err := os.ReadFile(filepath.Join(runDir, "unreachable_devices_"+summary.Stamp+".txt"))
	require.NoError(t, err)
	assert.Contains(t, string(failText), "Host: r2\tIP: 10.0.0.2\tReason:")
}

// TestRunEmptyDeviceList 空清单在任何设备操作前快速失败
func TestRunEmptyDeviceList(t *testing.T) {
	svc := newTestService(t, testConfig(t), &fakeOpener{})
	_, err := svc.Run(context.Background(), &RunRequest{
		Credentials: Credentials{Username: "admin", Password: "pw"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device list is empty")
}

// TestCollectCacheReuse 缓存命中时不下发 show run，但 VRF/ARP 命令照常执行
func TestCollectCacheReuse(t *testing.T) {
	cfg := testConfig(t)
	cc := cache.New(cfg.Cache.Dir, true)
	require.NoError(t, cc.Put("r1", "10.0.0.1", sampleConfig))

	sess := healthySession()
	opener := &fakeOpener{sessions: map[string]*fakeSession{"10.0.0.1": sess}}
	device, err := NewDeviceCollector(cfg, opener, cc)
	require.NoError(t, err)

	report := device.Collect(context.Background(),
		inventory.Device{Site: "HQ", Host: "r1", Address: "10.0.0.1"},
		Credentials{Username: "admin", Password: "pw"})

	require.False(t, report.Failed())
	assert.False(t, sess.ran("show run"), "缓存命中不应下发 show run")
	assert.True(t, sess.ran("show vrf"))
	assert.True(t, sess.ran("show ip arp vrf CUST"))
	assert.NotEmpty(t, report.CircuitBlocks, "缓存配置仍应完成抽取")
}

// TestCollectPerVRFFailureAbsent 单 VRF 拉取失败表示为缺失数据，设备不判失败
func TestCollectPerVRFFailureAbsent(t *testing.T) {
	cfg := testConfig(t)
	sess := healthySession()
	sess.failOn = map[string]error{
		"show ip arp vrf CUST": fmt.Errorf("command timeout"),
	}
	opener := &fakeOpener{sessions: map[string]*fakeSession{"10.0.0.1": sess}}
	device, err := NewDeviceCollector(cfg, opener, cache.New(t.TempDir(), true))
	require.NoError(t, err)

	report := device.Collect(context.Background(),
		inventory.Device{Site: "HQ", Host: "r1", Address: "10.0.0.1"},
		Credentials{Username: "admin", Password: "pw"})

	require.False(t, report.Failed())
	assert.Equal(t, []string{"CUST"}, report.VRFNames)
	_, hasARP := report.ARPByVRF["CUST"]
	assert.False(t, hasARP, "失败的 ARP 拉取应缺失而非报错")
	_, hasDetail := report.DetailByVRF["CUST"]
	assert.True(t, hasDetail)
}

// TestCollectCommandFailureEmptiesReport 设备级命令失败产出仅含原因的空报告
func TestCollectCommandFailureEmptiesReport(t *testing.T) {
	cfg := testConfig(t)
	sess := healthySession()
	sess.failOn = map[string]error{
		"show cdp neighbor detail": fmt.Errorf("connection reset"),
	}
	opener := &fakeOpener{sessions: map[string]*fakeSession{"10.0.0.1": sess}}
	device, err := NewDeviceCollector(cfg, opener, cache.New(t.TempDir(), true))
	require.NoError(t, err)

	report := device.Collect(context.Background(),
		inventory.Device{Site: "HQ", Host: "r1", Address: "10.0.0.1"},
		Credentials{Username: "admin", Password: "pw"})

	require.True(t, report.Failed())
	assert.Contains(t, report.FailureReason, "connection reset")
	assert.Empty(t, report.CircuitBlocks)
	assert.Empty(t, report.VRFNames)
	assert.Empty(t, report.PolicyMaps)
}

// TestRunPolicyMapInReport 电路引用的 policy-map 块进入设备文档
func TestRunPolicyMapInReport(t *testing.T) {
	cfg := testConfig(t)
	opener := &fakeOpener{sessions: map[string]*fakeSession{"10.0.0.1": healthySession()}}
	svc := newTestService(t, cfg, opener)

	summary, err := svc.Run(context.Background(), &RunRequest{
		Devices:     []inventory.Device{{Site: "HQ", Host: "r1", Address: "10.0.0.1"}},
		Credentials: Credentials{Username: "admin", Password: "pw"},
	})
	require.NoError(t, err)

	doc, err := os.ReadFile(filepath.Join(summary.ReportPath, "HQ", "r1_10.0.0.1.txt"))
	require.NoError(t, err)
	text := string(doc)
	assert.Contains(t, text, "interface Tunnel1")
	assert.NotContains(t, strings.Split(text, "! ---")[0], "interface GigabitEthernet0/1",
		"未命中的接口不应进入电路段")
	assert.Contains(t, text, "! --- QoS policy-map blocks ---")
	assert.Contains(t, text, "policy-map qos-wan")
	assert.Contains(t, text, "! --- show cdp neighbor detail ---")
}
