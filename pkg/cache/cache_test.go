package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCachePathSanitized 文件名非法字符替换为下划线
func TestCachePathSanitized(t *testing.T) {
	c := New("/tmp/cache", true)
	assert.Equal(t, filepath.Join("/tmp/cache", "core_r1_10.0.0.1_showrun.txt"),
		c.Path("core/r1", "10.0.0.1"))
}

// TestCacheRoundTrip 写入后命中读取，失效后未命中
func TestCacheRoundTrip(t *testing.T) {
	c := New(t.TempDir(), true)

	_, ok := c.Get("r1", "10.0.0.1")
	assert.False(t, ok)

	require.NoError(t, c.Put("r1", "10.0.0.1", "hostname r1\n"))
	got, ok := c.Get("r1", "10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, "hostname r1\n", got)

	require.NoError(t, c.Invalidate("r1", "10.0.0.1"))
	_, ok = c.Get("r1", "10.0.0.1")
	assert.False(t, ok)
}

// TestCacheDisabled 关闭时读写均为空操作
func TestCacheDisabled(t *testing.T) {
	c := New(t.TempDir(), false)
	require.NoError(t, c.Put("r1", "10.0.0.1", "hostname r1\n"))
	_, ok := c.Get("r1", "10.0.0.1")
	assert.False(t, ok)
}
