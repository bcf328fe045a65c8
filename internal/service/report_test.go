package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/circuitinfopro/circuitinfopro/internal/extract"
)

// TestSanitizeSiteDir 非法字符替换、长度上限与空名兜底
func TestSanitizeSiteDir(t *testing.T) {
	assert.Equal(t, "HQ_Main_Campus", SanitizeSiteDir("HQ Main/Campus"))
	assert.Equal(t, "Branch-01.west", SanitizeSiteDir("Branch-01.west"))
	assert.Len(t, SanitizeSiteDir(strings.Repeat("a", 60)), 31)
	assert.Equal(t, "Site", SanitizeSiteDir(""))
}

// TestRenderDeviceDocumentPlaceholder 无电路接口时写入占位行
func TestRenderDeviceDocumentPlaceholder(t *testing.T) {
	doc := RenderDeviceDocument(&DeviceReport{
		Site: "HQ", Host: "r1", Address: "10.0.0.1",
		VRFSummary: "  Name  RD\n  CUST  65000:1\n",
	})
	assert.True(t, strings.HasPrefix(doc, NoCircuitPlaceholder))
	assert.Contains(t, doc, "! --- show vrf summary ---")
}

// TestRenderDeviceDocumentSections 各数据段按固定顺序出现
func TestRenderDeviceDocumentSections(t *testing.T) {
	doc := RenderDeviceDocument(&DeviceReport{
		Site: "HQ", Host: "r1", Address: "10.0.0.1",
		CircuitBlocks: []*extract.Block{
			{Header: "interface Tunnel1", Lines: []string{"interface Tunnel1", " description ewans primary"}},
		},
		VRFSummary:  "  CUST  65000:1\n",
		VRFNames:    []string{"CUST", "MGMT"},
		ARPByVRF:    map[string]string{"CUST": "Internet 10.1.1.2"},
		DetailByVRF: map[string]string{"CUST": "CUST detail"},
		PolicyMaps: [][]string{
			{"policy-map qos-wan", "class realtime"},
		},
		NeighborDetail: "Device ID: sw1",
	})

	// MGMT 无 ARP 数据，整段跳过
	assert.NotContains(t, doc, "show ip arp vrf MGMT")
	assert.Contains(t, doc, "! show ip arp vrf CUST")
	assert.Contains(t, doc, "! show ip vrf CUST")

	order := []string{
		"interface Tunnel1",
		"! --- show vrf summary ---",
		"! show ip arp vrf CUST",
		"! --- QoS policy-map blocks ---",
		"! --- show cdp neighbor detail ---",
	}
	last := -1
	for _, marker := range order {
		pos := strings.Index(doc, marker)
		assert.Greater(t, pos, last, "段落顺序错误: %s", marker)
		last = pos
	}
}

// TestRenderFailureList 有失败设备逐行输出，否则写固定提示
func TestRenderFailureList(t *testing.T) {
	assert.Equal(t, "All devices were reachable.\n", RenderFailureList(nil))

	text := RenderFailureList([]FailedDeviceInfo{
		{Site: "HQ", Host: "r2", Address: "10.0.0.2", Reason: "ssh: unable to authenticate"},
	})
	assert.Equal(t, "Site: HQ\tHost: r2\tIP: 10.0.0.2\tReason: ssh: unable to authenticate\n", text)
}
