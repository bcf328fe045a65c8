package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFieldExtractor(t *testing.T) *FieldExtractor {
	t.Helper()
	e, err := NewFieldExtractor([]string{"comcast", "crowncastle", "astound", "att"}, `\b\w+ans\d*\b`)
	require.NoError(t, err)
	return e
}

// TestExtractFields 完整接口块的字段推断
func TestExtractFields(t *testing.T) {
	fields := testFieldExtractor(t).Extract([]string{
		"interface GigabitEthernet0/0/1.100",
		" description comcast  ewans2 50M Fiber handoff.. CID/ABC123",
		" bandwidth 50000",
		" ip address 10.1.1.1 255.255.255.252",
	})

	assert.Equal(t, "Comcast ewans2 50M Fiber handoff. CID/ABC123", fields.Description,
		"描述应折叠空白与点号并首字母大写")
	assert.Equal(t, "Comcast,ewans2", fields.Provider)
	assert.Equal(t, "CID/ABC123", fields.CircuitID)
	assert.Equal(t, "50M", fields.Bandwidth, "带宽优先取描述中的数字+单位记号")
	assert.Equal(t, "Fiber", fields.Handoff)
	assert.Equal(t, "100", fields.VLAN)
	assert.Equal(t, "10.1.1.1", fields.IP)
	assert.Equal(t, 30, fields.PrefixLen)
	assert.Equal(t, "10.1.1.2", fields.Peer)
}

// TestExtractPeerOtherHost 本端非首个可用主机时对端取首个
func TestExtractPeerOtherHost(t *testing.T) {
	fields := testFieldExtractor(t).Extract([]string{
		"interface Tunnel5",
		" ip address 10.1.1.2 255.255.255.252",
	})
	assert.Equal(t, "10.1.1.1", fields.Peer)
}

// TestExtractBandwidthFallback 描述无记号时回退 bandwidth 行；percent 不作为带宽
func TestExtractBandwidthFallback(t *testing.T) {
	e := testFieldExtractor(t)

	fields := e.Extract([]string{
		"interface Serial0/1",
		" description att private",
		" bandwidth 1536",
	})
	assert.Equal(t, "1536", fields.Bandwidth)
	assert.Equal(t, "Att", fields.Provider)

	fields = e.Extract([]string{
		"interface Serial0/2",
		" bandwidth percent",
	})
	assert.Equal(t, "", fields.Bandwidth)
}

// TestExtractBandwidthUnits 单位后随字母不算记号；G 系单位归一为 G
func TestExtractBandwidthUnits(t *testing.T) {
	e := testFieldExtractor(t)

	fields := e.Extract([]string{
		"interface Te0/0/0",
		" description crowncastle 10Gb wave",
	})
	assert.Equal(t, "10G", fields.Bandwidth)

	// mbps 的 s 紧随其后，不应按 100M 解析
	fields = e.Extract([]string{
		"interface Gi0/0/0",
		" description circuit 100mbps",
		" bandwidth 100000",
	})
	assert.Equal(t, "100000", fields.Bandwidth)
}

// TestExtractCopperHandoff 介质关键字出现在任意行即认定
func TestExtractCopperHandoff(t *testing.T) {
	fields := testFieldExtractor(t).Extract([]string{
		"interface Gi0/1",
		" description astound copper handoff",
	})
	assert.Equal(t, "Copper", fields.Handoff)
}

// TestExtractEmptyBlock 空块各字段为空，不报错
func TestExtractEmptyBlock(t *testing.T) {
	fields := testFieldExtractor(t).Extract(nil)
	assert.Equal(t, CircuitFields{}, fields)
}

// TestExtractHostAddressNoPeer /32 地址无对端
func TestExtractHostAddressNoPeer(t *testing.T) {
	fields := testFieldExtractor(t).Extract([]string{
		"interface Loopback0",
		" ip address 10.255.0.1 255.255.255.255",
	})
	assert.Equal(t, 32, fields.PrefixLen)
	assert.Equal(t, "", fields.Peer)
}
