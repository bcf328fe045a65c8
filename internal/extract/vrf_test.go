package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseVRFNames 跳过表头与空行，取每行首个词
func TestParseVRFNames(t *testing.T) {
	summary := "  Name                             Default RD            Protocols   Interfaces\n" +
		"  CUSTOMER-A                       65000:1               ipv4        Gi0/0/1\n" +
		"\n" +
		"  mgmt                             <not set>             ipv4        Gi0\n"

	assert.Equal(t, []string{"CUSTOMER-A", "mgmt"}, ParseVRFNames(summary))
}

// TestParseVRFNamesEmpty 缺失或空摘要视为无 VRF，不是错误
func TestParseVRFNamesEmpty(t *testing.T) {
	assert.Empty(t, ParseVRFNames(""))
	assert.Empty(t, ParseVRFNames("\n\n"))
	assert.Empty(t, ParseVRFNames("Name Default RD Protocols Interfaces"))
}

// TestParseVRFNamesCRLF CRLF 输入正常解析
func TestParseVRFNamesCRLF(t *testing.T) {
	assert.Equal(t, []string{"edge"}, ParseVRFNames("Name RD\r\nedge 65000:2\r\n"))
}
