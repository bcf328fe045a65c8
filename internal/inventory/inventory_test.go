package inventory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseAliasHeaders 列名按别名模糊匹配
func TestParseAliasHeaders(t *testing.T) {
	csvText := "Site Name,Switch,IP Address\n" +
		"HQ,core-sw1,10.0.0.1\n" +
		"Branch-2,edge-rtr1,10.0.1.1\n"

	devices, err := Parse(strings.NewReader(csvText))
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, Device{Site: "HQ", Host: "core-sw1", Address: "10.0.0.1"}, devices[0])
	assert.Equal(t, Device{Site: "Branch-2", Host: "edge-rtr1", Address: "10.0.1.1"}, devices[1])
}

// TestParseMissingColumn 缺少必需列报错
func TestParseMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("hostname,ip\nr1,10.0.0.1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a column")
}

// TestParseSkipsIncompleteRows 缺主机或地址的行跳过
func TestParseSkipsIncompleteRows(t *testing.T) {
	csvText := "site,host,ip\nHQ,r1,10.0.0.1\nHQ,,10.0.0.2\nHQ,r3,\n"
	devices, err := Parse(strings.NewReader(csvText))
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "r1", devices[0].Host)
}

// TestFilterSites 站点过滤保留清单顺序
func TestFilterSites(t *testing.T) {
	devices := []Device{
		{Site: "HQ", Host: "r1", Address: "10.0.0.1"},
		{Site: "Branch", Host: "r2", Address: "10.0.1.1"},
		{Site: "HQ", Host: "r3", Address: "10.0.0.3"},
	}

	got := FilterSites(devices, []string{"hq"})
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].Host)
	assert.Equal(t, "r3", got[1].Host)

	assert.Equal(t, devices, FilterSites(devices, nil), "空站点列表不过滤")
}

// TestSites 站点名按首现顺序去重
func TestSites(t *testing.T) {
	devices := []Device{
		{Site: "HQ", Host: "r1", Address: "1"},
		{Site: "Branch", Host: "r2", Address: "2"},
		{Site: "HQ", Host: "r3", Address: "3"},
	}
	assert.Equal(t, []string{"HQ", "Branch"}, Sites(devices))
}
