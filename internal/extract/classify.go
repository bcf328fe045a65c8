package extract

import (
	"fmt"
	"regexp"
	"strings"
)

var digitsRe = regexp.MustCompile(`\d+`)

// ClassifierConfig 电路分类参数；关键字与引用模式按部署可调
type ClassifierConfig struct {
	// Keywords 电路描述关键字，整段文本小写包含即命中
	Keywords []string
	// TunnelPattern 头部行匹配 Tunnel 接口的正则（按大小写不敏感编译）
	TunnelPattern string
	// BridgeDomainPattern 提取 bridge-domain 编号的正则，捕获组1为编号
	BridgeDomainPattern string
	// TrunkVlanMarker trunk 放行 VLAN 指令的识别子串
	TrunkVlanMarker string
}

// Classifier 电路块分类器：两遍选择，引用展开仅一级
type Classifier struct {
	keywords    []string
	tunnelRe    *regexp.Regexp
	bridgeRe    *regexp.Regexp
	trunkMarker string
}

// NewClassifier 构造分类器；模式编译失败返回错误
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	tunnelRe, err := regexp.Compile("(?i)" + cfg.TunnelPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid tunnel pattern %q: %w", cfg.TunnelPattern, err)
	}
	bridgeRe, err := regexp.Compile("(?i)" + cfg.BridgeDomainPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge-domain pattern %q: %w", cfg.BridgeDomainPattern, err)
	}
	if bridgeRe.NumSubexp() < 1 {
		return nil, fmt.Errorf("bridge-domain pattern %q must capture the domain number", cfg.BridgeDomainPattern)
	}
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Classifier{
		keywords:    keywords,
		tunnelRe:    tunnelRe,
		bridgeRe:    bridgeRe,
		trunkMarker: cfg.TrunkVlanMarker,
	}, nil
}

// Select 选出电路相关块
// 第一遍：头部匹配 Tunnel 模式，或整段文本包含任一关键字
// 第二遍：仅遍历第一遍的快照，展开 bridge-domain→BDI 与 trunk VLAN→Vlan 引用；
// 第二遍新增的块不再复扫（一级展开上限），已选头部不重复加入
func (c *Classifier) Select(blocks []*Block, index map[string]*Block) []*Block {
	primary := make([]*Block, 0, len(blocks))
	seen := make(map[string]bool, len(blocks))

	for _, b := range blocks {
		if seen[b.Header] {
			continue
		}
		if c.tunnelRe.MatchString(b.Header) || c.containsKeyword(b) {
			primary = append(primary, b)
			seen[b.Header] = true
		}
	}

	selected := make([]*Block, len(primary))
	copy(selected, primary)

	for _, b := range primary {
		for _, line := range b.Lines {
			if m := c.bridgeRe.FindStringSubmatch(line); m != nil {
				key := "interface BDI" + m[1]
				if ref, ok := index[key]; ok && !seen[key] {
					selected = append(selected, ref)
					seen[key] = true
				}
			}
			if c.trunkMarker != "" && strings.Contains(line, c.trunkMarker) {
				for _, v := range digitsRe.FindAllString(line, -1) {
					key := "interface Vlan" + v
					if ref, ok := index[key]; ok && !seen[key] {
						selected = append(selected, ref)
						seen[key] = true
					}
				}
			}
		}
	}

	return selected
}

func (c *Classifier) containsKeyword(b *Block) bool {
	txt := strings.ToLower(strings.Join(b.Lines, " "))
	for _, kw := range c.keywords {
		if strings.Contains(txt, kw) {
			return true
		}
	}
	return false
}

// SelectionText 选中块的拼接文本，块间以空行分隔；policy-map 引用名在其上发现
func SelectionText(blocks []*Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Text())
	}
	return strings.Join(parts, "\n\n")
}
