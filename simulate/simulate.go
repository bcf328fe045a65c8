package simulate

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

// 模拟 WAN 路由器的 SSH 服务，用于端到端联调与集成测试
// 用户名即设备名；命令输出来自 <output_dir>/<device>/<command>.txt
// （命令名中的空格可用下划线代替）

// Config simulate.yaml 配置结构
type Config struct {
	Port        int                     `mapstructure:"port"`
	Password    string                  `mapstructure:"password"`
	OutputDir   string                  `mapstructure:"output_dir"`
	HostKeyPath string                  `mapstructure:"host_key_path"`
	IdleSeconds int                     `mapstructure:"idle_seconds"`
	MaxConn     int                     `mapstructure:"max_conn"`
	Devices     map[string]DeviceConfig `mapstructure:"devices"`
}

// DeviceConfig 单台模拟设备
type DeviceConfig struct {
	PromptSuffix string `mapstructure:"prompt_suffix"`
}

// LoadConfig 读取 simulate.yaml
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	return &cfg, nil
}

// Server 模拟设备服务；Port 可为 0（随机端口，Addr() 获取实际地址）
type Server struct {
	cfg      *Config
	listener net.Listener
	hostKey  ssh.Signer
	active   int
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// Start 启动模拟服务
func Start(cfg *Config) (*Server, error) {
	if cfg.Password == "" {
		return nil, fmt.Errorf("simulate password is required")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("simulate output_dir is required")
	}
	signer, err := loadOrCreateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, listener: ln, hostKey: signer}
	go s.acceptLoop()
	logger.Infof("Simulate: device server started on %s", ln.Addr())
	return s, nil
}

// Addr 实际监听地址
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop 停止服务；等待活跃连接结束，上限3秒（客户端可能保持连接池常连）
func (s *Server) Stop() {
	_ = s.listener.Close()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
	}
	logger.Info("Simulate: device server stopped")
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.cfg.MaxConn > 0 && s.active >= s.cfg.MaxConn {
			s.mu.Unlock()
			_ = conn.Close()
			logger.Warn("Simulate: reject connection, max_conn exceeded")
			continue
		}
		s.active++
		s.mu.Unlock()

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(c)
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		}(conn)
	}
}

// loadOrCreateHostKey 加载持久化 host key；path 为空时生成临时密钥
func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	if path != "" {
		if bs, err := os.ReadFile(path); err == nil {
			if signer, err := ssh.ParsePrivateKey(bs); err == nil {
				return signer, nil
			}
			logger.Warnf("Simulate: host key parse failed, regenerating: %s", path)
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			_ = os.WriteFile(path, pemBytes, 0o600)
		}
	}
	return ssh.ParsePrivateKey(pemBytes)
}

func (s *Server) handleConn(nc net.Conn) {
	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if strings.TrimSpace(string(password)) == s.cfg.Password {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
		KeyboardInteractiveCallback: func(meta ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			// 兼容默认走 keyboard-interactive 的客户端
			answers, err := challenge(meta.User(), "Authentication", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) > 0 && strings.TrimSpace(answers[0]) == s.cfg.Password {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			continue
		}

		device := conn.User()
		suffix := s.promptSuffix(device)
		go s.handleSession(channel, requests, device, suffix)
	}
}

func (s *Server) promptSuffix(device string) string {
	if d, ok := s.cfg.Devices[device]; ok && strings.TrimSpace(d.PromptSuffix) != "" {
		return d.PromptSuffix
	}
	return "#"
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, device, suffix string) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "pty-req":
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
			s.runShell(channel, device, suffix)
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

func (s *Server) runShell(channel ssh.Channel, device, suffix string) {
	prompt := func() {
		_, _ = channel.Write([]byte(fmt.Sprintf("%s%s\r\n", device, suffix)))
	}
	prompt()

	reader := bufio.NewReader(channel)

	var idleTimer *time.Timer
	if s.cfg.IdleSeconds > 0 {
		idleTimer = time.AfterFunc(time.Duration(s.cfg.IdleSeconds)*time.Second, func() {
			_, _ = channel.Write([]byte("\r\nSession closed due to idle timeout.\r\n"))
			_ = channel.Close()
		})
		defer idleTimer.Stop()
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				logger.Debugf("Simulate: session read error on %s: %v", device, err)
			}
			return
		}
		if idleTimer != nil {
			idleTimer.Reset(time.Duration(s.cfg.IdleSeconds) * time.Second)
		}

		cmd := strings.TrimSpace(strings.ReplaceAll(line, "\r", ""))
		if cmd == "" {
			prompt()
			continue
		}
		if strings.EqualFold(cmd, "exit") || strings.EqualFold(cmd, "quit") {
			return
		}

		out := s.commandOutput(device, cmd)
		if out != "" {
			_, _ = channel.Write([]byte(out))
		}
		prompt()
	}
}

// commandOutput 读取脚本化命令输出；未匹配时返回 IOS 风格错误行
// terminal length 0 永远静默成功
func (s *Server) commandOutput(device, cmd string) string {
	if strings.EqualFold(cmd, "terminal length 0") {
		return ""
	}
	base := filepath.Join(s.cfg.OutputDir, device)
	if bs, err := os.ReadFile(filepath.Join(base, cmd+".txt")); err == nil {
		return ensureCRLF(string(bs))
	}
	normalized := strings.ReplaceAll(cmd, " ", "_")
	if bs, err := os.ReadFile(filepath.Join(base, normalized+".txt")); err == nil {
		return ensureCRLF(string(bs))
	}
	return "% Invalid input detected at '^' marker.\r\n"
}

// ensureCRLF 规范为 CRLF 行尾并保证末尾换行
func ensureCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}
