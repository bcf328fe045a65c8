package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pool SSH连接池
// 同一台设备在相邻运行间复用连接，避免频繁登录触发设备限流
type Pool struct {
	config      *Config
	connections map[string]*pooledConnection
	mutex       sync.RWMutex
	maxIdle     int
	maxActive   int
	idleTimeout time.Duration
}

// pooledConnection 池化的连接
type pooledConnection struct {
	client   *Client
	info     *ConnectionInfo
	lastUsed time.Time
	inUse    bool
	created  time.Time
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdle     int           `yaml:"max_idle"`
	MaxActive   int           `yaml:"max_active"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	SSHConfig   *Config       `yaml:"ssh"`
}

// NewPool 创建SSH连接池
func NewPool(config *PoolConfig) *Pool {
	pool := &Pool{
		config:      config.SSHConfig,
		connections: make(map[string]*pooledConnection),
		maxIdle:     config.MaxIdle,
		maxActive:   config.MaxActive,
		idleTimeout: config.IdleTimeout,
	}

	go pool.cleanup()

	return pool
}

// GetConnection 获取SSH连接
func (p *Pool) GetConnection(ctx context.Context, info *ConnectionInfo) (*Client, error) {
	key := p.connectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	// 查找现有连接
	if conn, exists := p.connections[key]; exists {
		if !conn.inUse && conn.client.IsConnected() {
			conn.inUse = true
			conn.lastUsed = time.Now()
			return conn.client, nil
		}
		// 连接已断开或正在使用，删除
		delete(p.connections, key)
	}

	if p.maxActive > 0 && p.activeCount() >= p.maxActive {
		return nil, fmt.Errorf("connection pool is full, active connections: %d", p.activeCount())
	}

	client := NewClient(p.config)
	if err := client.Connect(ctx, info); err != nil {
		return nil, fmt.Errorf("failed to create SSH connection: %w", err)
	}

	p.connections[key] = &pooledConnection{
		client:   client,
		info:     info,
		lastUsed: time.Now(),
		inUse:    true,
		created:  time.Now(),
	}

	return client, nil
}

// ReleaseConnection 释放SSH连接
func (p *Pool) ReleaseConnection(info *ConnectionInfo) {
	key := p.connectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		conn.inUse = false
		conn.lastUsed = time.Now()
	}
}

// CloseConnection 关闭指定连接
func (p *Pool) CloseConnection(info *ConnectionInfo) error {
	key := p.connectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		err := conn.client.Close()
		delete(p.connections, key)
		return err
	}

	return nil
}

// Close 关闭连接池
func (p *Pool) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var lastErr error
	for key, conn := range p.connections {
		if err := conn.client.Close(); err != nil {
			lastErr = err
		}
		delete(p.connections, key)
	}

	return lastErr
}

// GetStats 获取连接池统计信息
func (p *Pool) GetStats() map[string]interface{} {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return map[string]interface{}{
		"total_connections":  len(p.connections),
		"active_connections": p.activeCount(),
		"idle_connections":   p.idleCount(),
		"max_idle":           p.maxIdle,
		"max_active":         p.maxActive,
	}
}

func (p *Pool) connectionKey(info *ConnectionInfo) string {
	return fmt.Sprintf("%s:%d@%s", info.Host, info.Port, info.Username)
}

func (p *Pool) activeCount() int {
	count := 0
	for _, conn := range p.connections {
		if conn.inUse {
			count++
		}
	}
	return count
}

func (p *Pool) idleCount() int {
	count := 0
	for _, conn := range p.connections {
		if !conn.inUse {
			count++
		}
	}
	return count
}

// cleanup 周期清理过期连接
func (p *Pool) cleanup() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		p.cleanupExpired()
	}
}

func (p *Pool) cleanupExpired() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	toDelete := make([]string, 0)

	for key, conn := range p.connections {
		if !conn.inUse && now.Sub(conn.lastUsed) > p.idleTimeout {
			toDelete = append(toDelete, key)
			continue
		}
		if !conn.client.IsConnected() {
			toDelete = append(toDelete, key)
		}
	}

	for _, key := range toDelete {
		if conn, exists := p.connections[key]; exists {
			conn.client.Close()
			delete(p.connections, key)
		}
	}

	// 空闲连接过多时关闭多余部分
	idle := p.idleCount()
	if idle > p.maxIdle {
		excess := idle - p.maxIdle
		for key, conn := range p.connections {
			if excess <= 0 {
				break
			}
			if !conn.inUse {
				conn.client.Close()
				delete(p.connections, key)
				excess--
			}
		}
	}
}

// Health 健康检查
func (p *Pool) Health() error {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	total := len(p.connections)
	if total == 0 {
		return nil
	}

	connected := 0
	for _, conn := range p.connections {
		if conn.client.IsConnected() {
			connected++
		}
	}

	if connected == 0 {
		return fmt.Errorf("all connections are disconnected")
	}

	return nil
}
