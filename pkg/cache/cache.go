package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

var unsafeChars = regexp.MustCompile(`[^0-9A-Za-z_.-]`)

// ConfigCache 设备运行配置的文件缓存
// 缓存命中即跳过 show run 下发；文件存在与否就是缓存契约
type ConfigCache struct {
	dir     string
	enabled bool
}

// New 创建配置缓存；enabled 为 false 时读写均为空操作
func New(dir string, enabled bool) *ConfigCache {
	return &ConfigCache{dir: dir, enabled: enabled}
}

// Path 缓存文件路径：<dir>/<host>_<ip>_showrun.txt
func (c *ConfigCache) Path(host, address string) string {
	name := fmt.Sprintf("%s_%s_showrun.txt",
		unsafeChars.ReplaceAllString(host, "_"),
		unsafeChars.ReplaceAllString(address, "_"))
	return filepath.Join(c.dir, name)
}

// Get 读取缓存的运行配置；未命中返回 ("", false)
func (c *ConfigCache) Get(host, address string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	data, err := os.ReadFile(c.Path(host, address))
	if err != nil {
		return "", false
	}
	logger.WithDevice(host, address).Debug("Running-config served from cache")
	return string(data), true
}

// Put 写入运行配置缓存；写失败仅记录日志，不影响采集
func (c *ConfigCache) Put(host, address, raw string) error {
	if !c.enabled {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := c.Path(host, address)
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Invalidate 删除指定设备的缓存
func (c *ConfigCache) Invalidate(host, address string) error {
	err := os.Remove(c.Path(host, address))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
