// Package extract 实现运行配置的分块、电路识别、交叉引用展开与字段抽取
package extract

import (
	"strings"
)

// Block 一个配置段：头部行加其缩进的体行
type Block struct {
	// Header 去除空白后的头部行，作为索引键；重复头部后者覆盖
	Header string
	// Lines 含头部行在内的全部行；仅去除行尾空白，保留缩进
	Lines []string
}

// Text 返回整段文本（换行拼接）
func (b *Block) Text() string {
	return strings.Join(b.Lines, "\n")
}

// SegmentText 按行切分原始配置文本后分块
func SegmentText(raw string) ([]*Block, map[string]*Block) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return Segment(strings.Split(raw, "\n"))
}

// Segment 将运行配置行序列切分为有序块并建立头部索引
// 规则：以 interface 开头的行开启新块；块内缩进行追加；
// 非缩进的其他行结束当前块但不开启新块；输入结束时收尾
func Segment(lines []string) ([]*Block, map[string]*Block) {
	blocks := make([]*Block, 0, 16)
	var cur *Block

	flush := func() {
		if cur != nil {
			blocks = append(blocks, cur)
			cur = nil
		}
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "interface"):
			flush()
			header := strings.TrimSpace(line)
			cur = &Block{Header: header, Lines: []string{header}}
		case cur != nil && isIndented(line):
			cur.Lines = append(cur.Lines, strings.TrimRight(line, " \t"))
		default:
			flush()
		}
	}
	flush()

	index := make(map[string]*Block, len(blocks))
	for _, b := range blocks {
		index[b.Header] = b
	}
	return blocks, index
}

func isIndented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}
