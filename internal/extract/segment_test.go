package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSegmentRoundTrip 分块后按序拼接应还原输入（仅行尾空白差异）
func TestSegmentRoundTrip(t *testing.T) {
	input := []string{
		"interface Tunnel1",
		" description ewans Main  ",
		" ip address 10.0.0.1 255.255.255.252",
		"interface GigabitEthernet0/1",
		"\tdescription uplink",
	}

	blocks, _ := Segment(input)
	require.Len(t, blocks, 2)

	var joined []string
	for _, b := range blocks {
		joined = append(joined, b.Lines...)
	}

	require.Len(t, joined, len(input))
	for i, line := range input {
		assert.Equal(t, strings.TrimRight(line, " \t"), joined[i], "第%d行应仅有行尾空白差异", i)
	}
}

// TestSegmentBlockBoundaries 非缩进的其他行结束当前块但不开启新块
func TestSegmentBlockBoundaries(t *testing.T) {
	input := []string{
		"hostname router1",
		"interface Vlan10",
		" description mgmt",
		"ip route 0.0.0.0 0.0.0.0 10.0.0.1",
		"interface Vlan20",
		" shutdown",
	}

	blocks, index := Segment(input)
	require.Len(t, blocks, 2)
	assert.Equal(t, "interface Vlan10", blocks[0].Header)
	assert.Equal(t, []string{"interface Vlan10", " description mgmt"}, blocks[0].Lines)
	assert.Equal(t, "interface Vlan20", blocks[1].Header)
	assert.Contains(t, index, "interface Vlan10")
	assert.Contains(t, index, "interface Vlan20")
}

// TestSegmentDuplicateHeaderLastWins 重复头部时索引指向后出现的块
func TestSegmentDuplicateHeaderLastWins(t *testing.T) {
	input := []string{
		"interface Vlan10",
		" description first",
		"interface Vlan10",
		" description second",
	}

	blocks, index := Segment(input)
	require.Len(t, blocks, 2, "块列表应保留两个块")
	assert.Same(t, blocks[1], index["interface Vlan10"], "索引应指向后出现的块")
}

// TestSegmentTextNormalizesCRLF SegmentText 统一 CRLF 换行
func TestSegmentTextNormalizesCRLF(t *testing.T) {
	blocks, _ := SegmentText("interface Tunnel1\r\n description ewans\r\n")
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{"interface Tunnel1", " description ewans"}, blocks[0].Lines)
}

// TestSegmentEmptyInput 无 interface 头部时不产生块
func TestSegmentEmptyInput(t *testing.T) {
	blocks, index := Segment([]string{"hostname r1", "ip domain name example.com"})
	assert.Empty(t, blocks)
	assert.Empty(t, index)
}
