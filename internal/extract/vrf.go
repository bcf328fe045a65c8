package extract

import (
	"strings"
)

// ParseVRFNames 从 show vrf 摘要文本解析 VRF 名称
// 每个非空行取首个空白分隔的词；以 name 开头（大小写不敏感）的表头行跳过
func ParseVRFNames(summary string) []string {
	var names []string
	for _, line := range strings.Split(strings.ReplaceAll(summary, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "name") {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	return names
}
