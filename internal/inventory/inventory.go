// Package inventory 加载并过滤设备清单
package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var nonLetterRe = regexp.MustCompile(`[^a-z]`)

// Device 设备清单条目
type Device struct {
	Site    string `json:"site"`
	Host    string `json:"host"`
	Address string `json:"address"`
}

// 表头别名：清单来自不同团队，列名不统一
var (
	siteAliases = []string{"sitename", "siteid", "site"}
	hostAliases = []string{"hostname", "switch", "host"}
	addrAliases = []string{"ip", "ipaddress", "address"}
)

// LoadCSV 从 CSV 文件加载设备清单
func LoadCSV(path string) ([]Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open device list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse 解析设备清单；首行为表头，列名模糊匹配别名
func Parse(r io.Reader) ([]Device, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read device list header: %w", err)
	}

	siteCol, err := findColumn(header, siteAliases)
	if err != nil {
		return nil, err
	}
	hostCol, err := findColumn(header, hostAliases)
	if err != nil {
		return nil, err
	}
	addrCol, err := findColumn(header, addrAliases)
	if err != nil {
		return nil, err
	}

	var devices []Device
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read device list row: %w", err)
		}
		d := Device{
			Site:    fieldAt(rec, siteCol),
			Host:    fieldAt(rec, hostCol),
			Address: fieldAt(rec, addrCol),
		}
		// 缺主机或地址的行跳过
		if d.Host == "" || d.Address == "" {
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// FilterSites 按站点过滤，保留清单顺序；sites 为空时不过滤
func FilterSites(devices []Device, sites []string) []Device {
	if len(sites) == 0 {
		return devices
	}
	want := make(map[string]bool, len(sites))
	for _, s := range sites {
		want[normalize(s)] = true
	}
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if want[normalize(d.Site)] {
			out = append(out, d)
		}
	}
	return out
}

// Sites 返回清单中的站点名，按首现顺序去重
func Sites(devices []Device) []string {
	var sites []string
	seen := make(map[string]bool)
	for _, d := range devices {
		if !seen[d.Site] {
			seen[d.Site] = true
			sites = append(sites, d.Site)
		}
	}
	return sites
}

// normalize 列名/站点名归一：小写并去掉非字母字符
func normalize(name string) string {
	return nonLetterRe.ReplaceAllString(strings.ToLower(name), "")
}

func findColumn(header []string, aliases []string) (int, error) {
	norm := make(map[string]int, len(header))
	for i, h := range header {
		norm[normalize(h)] = i
	}
	for _, a := range aliases {
		if i, ok := norm[normalize(a)]; ok {
			return i, nil
		}
	}
	return 0, fmt.Errorf("device list is missing a column matching %v", aliases)
}

func fieldAt(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
