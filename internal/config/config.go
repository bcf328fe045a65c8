package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Collector CollectorConfig `mapstructure:"collector"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Report    ReportConfig    `mapstructure:"report"`
	Cache     CacheConfig     `mapstructure:"cache"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CollectorConfig 采集器配置
type CollectorConfig struct {
	ID string `mapstructure:"id"`
	// Concurrent 同时采集的设备数；1 表示严格按清单顺序串行
	Concurrent int `mapstructure:"concurrent"`
	// RetryFlags 默认重试次数：接口未指定时使用
	RetryFlags int `mapstructure:"retry_flags"`
	// Commands 每台设备按序下发的命令（show run 可能被缓存跳过）
	Commands CommandsConfig `mapstructure:"commands"`
}

// CommandsConfig 设备命令配置
// ArpVrf/VrfDetail 为格式串，%s 位置代入 VRF 名称
type CommandsConfig struct {
	DisablePaging string `mapstructure:"disable_paging"`
	RunningConfig string `mapstructure:"running_config"`
	VrfSummary    string `mapstructure:"vrf_summary"`
	ArpVrf        string `mapstructure:"arp_vrf"`
	VrfDetail     string `mapstructure:"vrf_detail"`
	NeighborCDP   string `mapstructure:"neighbor_cdp"`
}

// ExtractConfig 抽取器配置（电路关键字与引用模式，按部署可调）
type ExtractConfig struct {
	// CircuitKeywords 电路描述关键字（小写匹配，整段文本包含即命中）
	CircuitKeywords []string `mapstructure:"circuit_keywords"`
	// TunnelPattern 头部行匹配 Tunnel 接口的正则
	TunnelPattern string `mapstructure:"tunnel_pattern"`
	// BridgeDomainPattern 提取 bridge-domain 编号的正则（捕获组1为编号）
	BridgeDomainPattern string `mapstructure:"bridge_domain_pattern"`
	// TrunkVlanMarker trunk 放行 VLAN 指令的识别子串
	TrunkVlanMarker string `mapstructure:"trunk_vlan_marker"`
	// PolicyMapPrefix 电路引用的 policy-map 名称前缀
	PolicyMapPrefix string `mapstructure:"policy_map_prefix"`
	// Heuristic 二级启发式字段抽取配置
	Heuristic HeuristicConfig `mapstructure:"heuristic"`
}

// HeuristicConfig 启发式字段抽取配置
type HeuristicConfig struct {
	// PublicProviders 公网运营商关键字（description 内小写包含匹配）
	PublicProviders []string `mapstructure:"public_providers"`
	// PrivateCircuitPattern 专线电路标识正则（如 \b\w+ans\d*\b）
	PrivateCircuitPattern string `mapstructure:"private_circuit_pattern"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig 报表对象存储配置
type StorageConfig struct {
	Minio MinioConfig `mapstructure:"minio"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// ReportConfig 报表输出配置
type ReportConfig struct {
	// Backend 默认存储后端：local | minio
	Backend string `mapstructure:"backend"`
	// BaseDir 本地输出根目录
	BaseDir string `mapstructure:"base_dir"`
	// Prefix 顶层目录前缀（与运行时间戳组合）
	Prefix         string `mapstructure:"prefix"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// CacheConfig 原始配置缓存
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// SSHConfig SSH配置
type SSHConfig struct {
	// Timeout 不直接映射顶层 ssh.timeout（避免与嵌套块冲突）；在 Load 中手动填充
	Timeout           time.Duration `mapstructure:"-"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	MaxSessions       int           `mapstructure:"max_sessions"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

var globalConfig *Config

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	// 设置默认值
	setDefaults()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// 默认配置文件路径
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("../configs")
		viper.AddConfigPath("../../configs")
	}

	// 设置环境变量前缀
	viper.SetEnvPrefix("CIRCUIT_COLLECTOR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 嵌套块：ssh.timeout.*（若存在则覆盖旧字段）
	if viper.IsSet("ssh.timeout.timeout_all") {
		if to := viper.GetDuration("ssh.timeout.timeout_all"); to > 0 {
			config.SSH.Timeout = to
		}
	}
	// 兼容旧顶层：ssh.timeout 为时长字符串时生效
	if config.SSH.Timeout <= 0 {
		if to := viper.GetDuration("ssh.timeout"); to > 0 {
			config.SSH.Timeout = to
		}
	}
	// 拆分的握手超时（dial/auth）合并为 ConnectTimeout
	dialSec := viper.GetInt("ssh.timeout.dial_timeout")
	authSec := viper.GetInt("ssh.timeout.auth_timeout")
	if dialSec > 0 || authSec > 0 {
		config.SSH.ConnectTimeout = time.Duration(dialSec+authSec) * time.Second
	}

	// 环境变量替换
	config = replaceEnvVars(config)

	globalConfig = &config
	return &config, nil
}

func setDefaults() {
	// 电路识别默认关键字：与现网描述约定对齐，可按承运商命名惯例覆盖
	viper.SetDefault("extract.circuit_keywords", []string{
		"ewans", "owans", "cid#", "rcn", "crowncastle", "comcast", "wans", "cid",
	})
	viper.SetDefault("extract.tunnel_pattern", `^interface\s+Tunnel`)
	viper.SetDefault("extract.bridge_domain_pattern", `bridge-domain\s+(\d+)`)
	viper.SetDefault("extract.trunk_vlan_marker", "switchport trunk allowed vlan")
	viper.SetDefault("extract.policy_map_prefix", "qos-")
	viper.SetDefault("extract.heuristic.public_providers", []string{
		"comcast", "crowncastle", "astound", "att",
	})
	viper.SetDefault("extract.heuristic.private_circuit_pattern", `\b\w+ans\d*\b`)

	// 设备命令默认值（Cisco IOS 系）
	viper.SetDefault("collector.commands.disable_paging", "terminal length 0")
	viper.SetDefault("collector.commands.running_config", "show run")
	viper.SetDefault("collector.commands.vrf_summary", "show vrf")
	viper.SetDefault("collector.commands.arp_vrf", "show ip arp vrf %s")
	viper.SetDefault("collector.commands.vrf_detail", "show ip vrf %s")
	viper.SetDefault("collector.commands.neighbor_cdp", "show cdp neighbor detail")

	// 采集并发默认：1 即清单顺序串行；失败隔离与分组顺序与并发无关
	viper.SetDefault("collector.concurrent", 1)
	viper.SetDefault("collector.retry_flags", 1)

	// 报表输出默认配置
	viper.SetDefault("report.backend", "local")
	viper.SetDefault("report.base_dir", "./data/reports")
	viper.SetDefault("report.prefix", "circuit_info")
	viper.SetDefault("report.mkdir_if_missing", true)

	// show run 缓存默认开启
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dir", "./data/cache")

	// SSH 超时默认
	viper.SetDefault("ssh.timeout.timeout_all", 60*time.Second)
	viper.SetDefault("ssh.timeout.dial_timeout", 2)
	viper.SetDefault("ssh.timeout.auth_timeout", 5)
	viper.SetDefault("ssh.command_timeout", 30*time.Second)
	viper.SetDefault("ssh.max_sessions", 4)

	// 日志默认级别为 info
	viper.SetDefault("log.level", "info")
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// replaceEnvVars 替换配置中的环境变量
func replaceEnvVars(config Config) Config {
	// 替换采集器ID
	if strings.HasPrefix(config.Collector.ID, "${") && strings.HasSuffix(config.Collector.ID, "}") {
		envVar := strings.TrimSuffix(strings.TrimPrefix(config.Collector.ID, "${"), "}")
		if value := os.Getenv(envVar); value != "" {
			config.Collector.ID = value
		}
	}

	return config
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetCommandTimeout 单命令超时；未配置时回退到整体超时
func (c *Config) GetCommandTimeout() time.Duration {
	if c.SSH.CommandTimeout > 0 {
		return c.SSH.CommandTimeout
	}
	if c.SSH.Timeout > 0 {
		return c.SSH.Timeout
	}
	return 30 * time.Second
}
