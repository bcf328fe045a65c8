package integration

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circuitinfopro/circuitinfopro/internal/config"
	"github.com/circuitinfopro/circuitinfopro/internal/inventory"
	"github.com/circuitinfopro/circuitinfopro/internal/service"
	"github.com/circuitinfopro/circuitinfopro/pkg/cache"
	sshpkg "github.com/circuitinfopro/circuitinfopro/pkg/ssh"
	"github.com/circuitinfopro/circuitinfopro/simulate"
)

const simPassword = "lab-secret"

const simShowRun = `hostname r1
interface Tunnel1
 description ewans primary 50M
 ip address 10.1.1.1 255.255.255.252
 service-policy output policy-map qos-wan
interface GigabitEthernet0/1
 description uplink
policy-map qos-wan
 class realtime
  priority level 1
`

const simShowVRF = `  Name     Default RD   Protocols   Interfaces
  CUST     65000:1      ipv4        Gi0/0/1
`

// startSimServer 以脚本化输出启动一台模拟设备，返回地址与端口
func startSimServer(t *testing.T) (string, int) {
	t.Helper()

	outDir := t.TempDir()
	devDir := filepath.Join(outDir, "r1")
	require.NoError(t, os.MkdirAll(devDir, 0o755))

	fixtures := map[string]string{
		"show run":                 simShowRun,
		"show vrf":                 simShowVRF,
		"show ip arp vrf CUST":     "Internet  10.1.1.2  0  aabb.cc00.0100  ARPA  Gi0/0/1\n",
		"show ip vrf CUST":         "  CUST  65000:1  Gi0/0/1\n",
		"show cdp neighbor detail": "Device ID: neighbor-sw1\nPlatform: cisco WS-C3850\n",
	}
	for cmd, out := range fixtures {
		require.NoError(t, os.WriteFile(filepath.Join(devDir, cmd+".txt"), []byte(out), 0o644))
	}

	srv, err := simulate.Start(&simulate.Config{
		Port:      0,
		Password:  simPassword,
		OutputDir: outDir,
		Devices:   map[string]simulate.DeviceConfig{"r1": {PromptSuffix: "#"}},
	})
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

// TestSessionAgainstSimulatedDevice 交互式会话的提示符分隔与回显处理
func TestSessionAgainstSimulatedDevice(t *testing.T) {
	host, port := startSimServer(t)

	client := sshpkg.NewClient(&sshpkg.Config{
		ConnectTimeout: 5 * time.Second,
		CommandTimeout: 10 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, client.Connect(ctx, &sshpkg.ConnectionInfo{
		Host: host, Port: port, Username: "r1", Password: simPassword,
	}))
	defer client.Close()

	sess, err := client.OpenSession(ctx, 10*time.Second)
	require.NoError(t, err)
	defer sess.Close()

	// 空输出命令应立即以提示符收尾，而不是超时
	res, err := sess.Run(ctx, "terminal length 0")
	require.NoError(t, err)
	assert.Empty(t, res.Output)

	res, err = sess.Run(ctx, "show vrf")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "CUST")

	res, err = sess.Run(ctx, "show bogus")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "% Invalid input")
}

// TestAuthFailureAgainstSimulatedDevice 错误口令返回认证错误
func TestAuthFailureAgainstSimulatedDevice(t *testing.T) {
	host, port := startSimServer(t)

	client := sshpkg.NewClient(&sshpkg.Config{ConnectTimeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := client.Connect(ctx, &sshpkg.ConnectionInfo{
		Host: host, Port: port, Username: "r1", Password: "wrong",
	})
	require.Error(t, err)
}

// TestCollectAgainstSimulatedDevice 完整采集流水线（真实 SSH 到模拟设备）
func TestCollectAgainstSimulatedDevice(t *testing.T) {
	host, port := startSimServer(t)

	cfg := &config.Config{
		Collector: config.CollectorConfig{
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
			CircuitKeywords:     []string{"ewans"},
			TunnelPattern:       `^interface\s+Tunnel`,
			BridgeDomainPattern: `bridge-domain\s+(\d+)`,
			TrunkVlanMarker:     "switchport trunk allowed vlan",
			PolicyMapPrefix:     "qos-",
		},
		Cache: config.CacheConfig{Enabled: false},
		SSH: config.SSHConfig{
			ConnectTimeout: 5 * time.Second,
			CommandTimeout: 10 * time.Second,
		},
	}

	device, err := service.NewDeviceCollector(cfg, service.NewSessionOpener(cfg), cache.New("", false))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	report := device.Collect(ctx,
		inventory.Device{Site: "Lab", Host: "r1", Address: host},
		service.Credentials{Username: "r1", Password: simPassword, Port: port})

	require.False(t, report.Failed(), "采集失败: %s", report.FailureReason)
	require.Len(t, report.CircuitBlocks, 1)
	assert.Equal(t, "interface Tunnel1", report.CircuitBlocks[0].Header)
	assert.Equal(t, []string{"CUST"}, report.VRFNames)
	assert.Contains(t, report.ARPByVRF["CUST"], "10.1.1.2")
	require.Len(t, report.PolicyMaps, 1)
	assert.Equal(t, "policy-map qos-wan", report.PolicyMaps[0][0])
	assert.Contains(t, report.NeighborDetail, "neighbor-sw1")
}
