package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// PolicyExtractor 提取电路文本引用的 policy-map 定义块
type PolicyExtractor struct {
	nameRe *regexp.Regexp
}

// NewPolicyExtractor 构造提取器；prefix 为引用名前缀（如 qos-）
func NewPolicyExtractor(prefix string) (*PolicyExtractor, error) {
	if prefix == "" {
		return nil, fmt.Errorf("policy-map name prefix is empty")
	}
	nameRe, err := regexp.Compile(`(?i)policy-map\s+(` + regexp.QuoteMeta(prefix) + `[\w-]+)`)
	if err != nil {
		return nil, fmt.Errorf("invalid policy-map prefix %q: %w", prefix, err)
	}
	return &PolicyExtractor{nameRe: nameRe}, nil
}

// DiscoverNames 在电路文本（非全量配置）中扫描引用名；去重，保留首现顺序
func (p *PolicyExtractor) DiscoverNames(circuitText string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range p.nameRe.FindAllStringSubmatch(circuitText, -1) {
		name := m[1]
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			names = append(names, name)
		}
	}
	return names
}

// Extract 在全量配置中抓取指定 policy-map 块；首行为头部行，体行去除空白；
// 首个非缩进行结束捕获；未命中返回 nil（静默跳过，不是错误）
func (p *PolicyExtractor) Extract(name string, cfg []string) []string {
	header := "policy-map " + strings.ToLower(name)
	var blk []string
	capturing := false
	for _, line := range cfg {
		if capturing {
			if !isIndented(line) {
				break
			}
			blk = append(blk, strings.TrimSpace(line))
			continue
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), header) {
			blk = append(blk, strings.TrimSpace(line))
			capturing = true
		}
	}
	return blk
}

// ExtractReferenced 发现并抓取电路文本引用的全部 policy-map 块，按引用顺序返回
func (p *PolicyExtractor) ExtractReferenced(circuitText string, cfg []string) [][]string {
	var out [][]string
	for _, name := range p.DiscoverNames(circuitText) {
		if blk := p.Extract(name, cfg); len(blk) > 0 {
			out = append(out, blk)
		}
	}
	return out
}
