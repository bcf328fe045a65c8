package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSanitizeLine ANSI 转义与控制符清洗
func TestSanitizeLine(t *testing.T) {
	assert.Equal(t, "router#", sanitizeLine("\x1b[0mrouter#\x1b[K"))
	assert.Equal(t, "abc", sanitizeLine("  a\x07b\x08c  "))
	assert.Equal(t, "col1\tcol2", sanitizeLine("col1\tcol2"))
	assert.Equal(t, "", sanitizeLine("\x1b[2J"))
}

// TestStripControlKeepsIndent 输出清洗保留行首缩进
func TestStripControlKeepsIndent(t *testing.T) {
	assert.Equal(t, " description ewans primary", stripControl(" description ewans primary"))
	assert.Equal(t, "  ip address 10.1.1.1", stripControl("\x1b[0m  ip address 10.1.1.1"))
}

// TestHasPromptSuffix 提示符后缀匹配
func TestHasPromptSuffix(t *testing.T) {
	assert.True(t, hasPromptSuffix("router#", DefaultPromptSuffixes))
	assert.True(t, hasPromptSuffix("switch>", DefaultPromptSuffixes))
	assert.True(t, hasPromptSuffix("<HuaWei>]", DefaultPromptSuffixes))
	assert.False(t, hasPromptSuffix("interface Tunnel1", DefaultPromptSuffixes))
}

// TestIsPromptWithPrefix 捕获前缀后要求提示符包含主机名片段
func TestIsPromptWithPrefix(t *testing.T) {
	s := &Session{promptSuffixes: DefaultPromptSuffixes, promptPrefix: "router"}
	assert.True(t, s.isPrompt("router#"))
	assert.True(t, s.isPrompt("router(config)#"))
	// 配置行以 # 结尾但不含主机名，不应误判
	assert.False(t, s.isPrompt("other-host#"))
	assert.False(t, s.isPrompt(""))
}

// TestStripPromptPrefix 剥离提示符前缀提取回显主体
func TestStripPromptPrefix(t *testing.T) {
	s := &Session{promptSuffixes: DefaultPromptSuffixes}
	assert.Equal(t, "show run", s.stripPromptPrefix("router#show run"))
	assert.Equal(t, "show vrf", s.stripPromptPrefix("show vrf"))
}
