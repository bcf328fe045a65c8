package extract

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"
	"regexp"
	"strings"
	"unicode"
)

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	multiDotRe   = regexp.MustCompile(`\.{2,}`)
	dashRe       = regexp.MustCompile("[–—-]")
	circuitIDRe  = regexp.MustCompile(`([A-Za-z0-9./-]+)\s*$`)
	bandwidthRe  = regexp.MustCompile(`(?i)(\d+)\s*(meg|mb|gb|m|g)`)
)

// CircuitFields 从单个接口块推断出的电路属性；推断失败的字段为空
type CircuitFields struct {
	Description   string `json:"description"`
	Provider      string `json:"provider"`
	CircuitID     string `json:"circuit_id"`
	Bandwidth     string `json:"bandwidth"`
	BandwidthLine string `json:"bandwidth_line"`
	Handoff       string `json:"handoff"`
	VLAN          string `json:"vlan"`
	IP            string `json:"ip"`
	Mask          string `json:"mask"`
	PrefixLen     int    `json:"prefix_len"`
	Peer          string `json:"peer"`
}

// FieldExtractor 启发式字段抽取器：对已分块的接口文本做纯文本推断，无 I/O
type FieldExtractor struct {
	publicProviders []string
	privateRe       *regexp.Regexp
}

// NewFieldExtractor 构造抽取器
// publicProviders 为公网运营商关键字；privatePattern 匹配专线电路标识
func NewFieldExtractor(publicProviders []string, privatePattern string) (*FieldExtractor, error) {
	privateRe, err := regexp.Compile("(?i)" + privatePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid private circuit pattern %q: %w", privatePattern, err)
	}
	lowered := make([]string, 0, len(publicProviders))
	for _, kw := range publicProviders {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &FieldExtractor{publicProviders: lowered, privateRe: privateRe}, nil
}

// Extract 从接口块行推断电路属性；确定性纯函数
func (e *FieldExtractor) Extract(lines []string) CircuitFields {
	var f CircuitFields
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		low := strings.ToLower(line)
		switch {
		case strings.HasPrefix(low, "description "):
			f.Description = cleanDescription(line[len("description "):])
		case strings.HasPrefix(low, "bandwidth "):
			if parts := strings.Fields(line); len(parts) > 1 {
				f.BandwidthLine = parts[1]
			}
		case strings.HasPrefix(low, "ip address "):
			if parts := strings.Fields(line); len(parts) >= 4 {
				f.IP, f.Mask = parts[2], parts[3]
				if ones, ok := maskPrefixLen(f.Mask); ok {
					f.PrefixLen = ones
					f.Peer = peerAddress(f.IP, ones)
				}
			}
		}
		// 传输介质：任一行包含关键字即认定，后续行可覆盖
		if strings.Contains(low, "fiber") {
			f.Handoff = "Fiber"
		} else if strings.Contains(low, "copper") {
			f.Handoff = "Copper"
		}
		// 点分子接口名携带 VLAN 编号
		if strings.HasPrefix(low, "interface ") {
			if parts := strings.Fields(line); len(parts) > 1 {
				if i := strings.IndexByte(parts[1], '.'); i >= 0 {
					f.VLAN = parts[1][i+1:]
				}
			}
		}
	}

	f.Provider = e.provider(f.Description)
	if m := circuitIDRe.FindStringSubmatch(f.Description); m != nil {
		f.CircuitID = m[1]
	}
	f.Bandwidth = parseBandwidth(f.Description, f.BandwidthLine)

	return f
}

// provider 公网运营商关键字与专线标识组合，两者独立可选
func (e *FieldExtractor) provider(desc string) string {
	low := strings.ToLower(desc)
	var pub, priv string
	for _, kw := range e.publicProviders {
		if strings.Contains(low, kw) {
			pub = capitalize(kw)
			break
		}
	}
	if m := e.privateRe.FindString(low); m != "" {
		priv = strings.ToLower(m)
	}
	if pub != "" && priv != "" {
		return pub + "," + priv
	}
	if pub != "" {
		return pub
	}
	return priv
}

// cleanDescription 规整描述：折叠连续空白与点号，统一破折号，首字母大写
func cleanDescription(raw string) string {
	d := strings.TrimSpace(raw)
	d = multiSpaceRe.ReplaceAllString(d, " ")
	d = multiDotRe.ReplaceAllString(d, ".")
	d = dashRe.ReplaceAllString(d, "–")
	return capitalize(d)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// parseBandwidth 优先取描述中的 数字+单位 记号；否则回退 bandwidth 行的值，
// 但字面量 percent 不作为带宽
func parseBandwidth(desc, bandwidthLine string) string {
	// RE2 不支持负向前瞻，单位候选按长度降序排列后检查后随字符
	for _, idx := range bandwidthRe.FindAllStringSubmatchIndex(desc, -1) {
		end := idx[1]
		if end < len(desc) && isASCIILetter(desc[end]) {
			continue
		}
		n := desc[idx[2]:idx[3]]
		unit := strings.ToLower(desc[idx[4]:idx[5]])
		if strings.HasPrefix(unit, "g") {
			return n + "G"
		}
		return n + "M"
	}
	if bandwidthLine != "" && !strings.EqualFold(bandwidthLine, "percent") {
		return bandwidthLine
	}
	return ""
}

func isASCIILetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// maskPrefixLen 点分掩码转前缀长度；非连续掩码返回 false
func maskPrefixLen(mask string) (int, bool) {
	addr, err := netip.ParseAddr(mask)
	if err != nil || !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	v := binary.BigEndian.Uint32(b[:])
	ones := bits.OnesCount32(v)
	if v != ^uint32(0)<<(32-uint(ones)) {
		return 0, false
	}
	return ones, true
}

// peerAddress 以本端地址所在子网的另一台主机作为对端
// 本端为首个可用主机时取第二个，否则取首个；/32 无对端
func peerAddress(ipStr string, prefixLen int) string {
	addr, err := netip.ParseAddr(ipStr)
	if err != nil || !addr.Is4() || prefixLen >= 32 {
		return ""
	}
	prefix, err := addr.Prefix(prefixLen)
	if err != nil {
		return ""
	}
	network := prefix.Addr()
	var first, second netip.Addr
	if prefixLen == 31 {
		first, second = network, network.Next()
	} else {
		first = network.Next()
		second = first.Next()
	}
	if first == addr {
		return second.String()
	}
	return first.String()
}
