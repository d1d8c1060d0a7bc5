package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"Freelance-Autopilot/internal/orchestrator"
	"Freelance-Autopilot/pkg/logger"
)

// Config 描述了引擎在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig          `json:"server" yaml:"server"`
	Storage  StorageConfig         `json:"storage" yaml:"storage"`
	LLM      LLMConfig             `json:"llm" yaml:"llm"`
	Lock     LockConfig            `json:"lock" yaml:"lock"`
	Dispatch DispatchConfig        `json:"dispatch" yaml:"dispatch"`
	Logging  logger.Config         `json:"logging" yaml:"logging"`
	Metrics  MetricsConfig         `json:"metrics" yaml:"metrics"`
	Alerting AlertingConfig        `json:"alerting" yaml:"alerting"`
	Agents   orchestrator.Policies `json:"agents" yaml:"agents"`
	Runtime  RuntimeConfig         `json:"runtime" yaml:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address      string        `json:"address" yaml:"address"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// StorageConfig 描述业务数据的存储后端。Driver 取值 memory、mysql 或 sqlite。
type StorageConfig struct {
	Driver          string        `json:"driver" yaml:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn"`
	DSNEnv          string        `json:"dsn_env" yaml:"dsn_env"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	SeedFile        string        `json:"seed_file" yaml:"seed_file"`
}

// LLMConfig 用于配置文本生成的调用方式。Provider 取值 disabled、openai 或 python_bridge。
type LLMConfig struct {
	Provider           string             `json:"provider" yaml:"provider"`
	Timeout            time.Duration      `json:"timeout" yaml:"timeout"`
	RateLimitPerMinute int                `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	Burst              int                `json:"burst" yaml:"burst"`
	OpenAI             OpenAIConfig       `json:"openai" yaml:"openai"`
	Python             PythonBridgeConfig `json:"python_bridge" yaml:"python_bridge"`
}

// OpenAIConfig 描述 OpenAI 兼容接口的访问参数。
type OpenAIConfig struct {
	APIKey      string  `json:"api_key" yaml:"api_key"`
	APIKeyEnv   string  `json:"api_key_env" yaml:"api_key_env"`
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// PythonBridgeConfig 描述通过 Python 脚本完成生成时所需的信息。
type PythonBridgeConfig struct {
	PythonExecutable string `json:"python_executable" yaml:"python_executable"`
	ScriptPath       string `json:"script_path" yaml:"script_path"`
	WorkingDir       string `json:"working_dir" yaml:"working_dir"`
}

// RedisConfig 是 Redis 连接参数。
type RedisConfig struct {
	Address     string `json:"address" yaml:"address"`
	Password    string `json:"password" yaml:"password"`
	PasswordEnv string `json:"password_env" yaml:"password_env"`
	DB          int    `json:"db" yaml:"db"`
}

// LockConfig 选择运行锁实现。Driver 取值 memory 或 redis。
type LockConfig struct {
	Driver string        `json:"driver" yaml:"driver"`
	Prefix string        `json:"prefix" yaml:"prefix"`
	TTL    time.Duration `json:"ttl" yaml:"ttl"`
	Redis  RedisConfig   `json:"redis" yaml:"redis"`
}

// DispatchConfig 描述异步运行请求的队列。Driver 取值 memory、redis 或 rabbitmq。
type DispatchConfig struct {
	Driver    string         `json:"driver" yaml:"driver"`
	Workers   int            `json:"workers" yaml:"workers"`
	QueueSize int            `json:"queue_size" yaml:"queue_size"`
	Queue     string         `json:"queue" yaml:"queue"`
	Redis     RedisConfig    `json:"redis" yaml:"redis"`
	RabbitMQ  RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接参数。
type RabbitMQConfig struct {
	URL      string `json:"url" yaml:"url"`
	URLEnv   string `json:"url_env" yaml:"url_env"`
	Prefetch int    `json:"prefetch" yaml:"prefetch"`
}

// MetricsConfig 控制独立的指标端口，为空时仅由 API 服务暴露 /metrics。
type MetricsConfig struct {
	Address string `json:"address" yaml:"address"`
}

// AlertingConfig 配置告警渠道。
type AlertingConfig struct {
	WebhookURL    string `json:"webhook_url" yaml:"webhook_url"`
	WebhookURLEnv string `json:"webhook_url_env" yaml:"webhook_url_env"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir    string        `json:"data_dir" yaml:"data_dir"`
	Workers    int           `json:"workers" yaml:"workers"`
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout"`
	Timezone   string        `json:"timezone" yaml:"timezone"`
}

// Default 返回全部使用默认值的配置。
func Default() *Config {
	cfg := &Config{Agents: orchestrator.DefaultPolicies()}
	cfg.applyDefaults(".")
	return cfg
}

// Load 解析指定路径的配置文件，.yaml/.yml 按 YAML 解析，其余按 JSON 解析。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	cfg, err := Parse(content, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse 解析配置内容，未出现的字段保留默认策略。
func Parse(content []byte, ext string) (*Config, error) {
	cfg := &Config{Agents: orchestrator.DefaultPolicies()}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
	default:
		if !json.Valid(content) {
			return nil, errors.New("解析配置失败: 不是合法的 JSON")
		}
	}
	// JSON 是 YAML 的子集，统一解码使两种格式都支持 "8s" 形式的时长。
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
	if c.Runtime.Workers <= 0 {
		c.Runtime.Workers = 5
	}
	if c.Runtime.RunTimeout <= 0 {
		c.Runtime.RunTimeout = 30 * time.Second
	}
	if c.Runtime.Timezone != "" && c.Agents.Productivity.Timezone == "" {
		c.Agents.Productivity.Timezone = c.Runtime.Timezone
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.DSN == "" && c.Storage.DSNEnv != "" {
		c.Storage.DSN = os.Getenv(c.Storage.DSNEnv)
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "file:" + filepath.Join(c.Runtime.DataDir, "autopilot.db")
	}
	if c.Storage.SeedFile != "" && !filepath.IsAbs(c.Storage.SeedFile) {
		c.Storage.SeedFile = filepath.Join(baseDir, c.Storage.SeedFile)
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "disabled"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 8 * time.Second
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.LLM.OpenAI.APIKey == "" {
		c.LLM.OpenAI.APIKey = os.Getenv(c.LLM.OpenAI.APIKeyEnv)
	}
	if c.LLM.Python.PythonExecutable == "" {
		c.LLM.Python.PythonExecutable = "python3"
	}
	if c.LLM.Python.WorkingDir == "" {
		c.LLM.Python.WorkingDir = baseDir
	} else if !filepath.IsAbs(c.LLM.Python.WorkingDir) {
		c.LLM.Python.WorkingDir = filepath.Join(baseDir, c.LLM.Python.WorkingDir)
	}

	if c.Lock.Driver == "" {
		c.Lock.Driver = "memory"
	}
	resolveRedis(&c.Lock.Redis)

	if c.Dispatch.Driver == "" {
		c.Dispatch.Driver = "memory"
	}
	if c.Dispatch.Workers <= 0 {
		c.Dispatch.Workers = 2
	}
	if c.Dispatch.QueueSize <= 0 {
		c.Dispatch.QueueSize = 64
	}
	if c.Dispatch.Queue == "" {
		c.Dispatch.Queue = "autopilot:runs"
	}
	resolveRedis(&c.Dispatch.Redis)
	if c.Dispatch.RabbitMQ.URL == "" && c.Dispatch.RabbitMQ.URLEnv != "" {
		c.Dispatch.RabbitMQ.URL = os.Getenv(c.Dispatch.RabbitMQ.URLEnv)
	}

	if c.Alerting.WebhookURL == "" && c.Alerting.WebhookURLEnv != "" {
		c.Alerting.WebhookURL = os.Getenv(c.Alerting.WebhookURLEnv)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}

func resolveRedis(r *RedisConfig) {
	if r.Password == "" && r.PasswordEnv != "" {
		r.Password = os.Getenv(r.PasswordEnv)
	}
}

// Validate 检查取值是否受支持。
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s 不支持 %q，可选值: %s", field, value, strings.Join(allowed, ", ")))
	}
	check("storage.driver", c.Storage.Driver, "memory", "mysql", "sqlite")
	check("llm.provider", c.LLM.Provider, "disabled", "openai", "python_bridge")
	check("lock.driver", c.Lock.Driver, "memory", "redis")
	check("dispatch.driver", c.Dispatch.Driver, "memory", "redis", "rabbitmq")

	if c.Storage.Driver == "mysql" && c.Storage.DSN == "" {
		errs = append(errs, errors.New("storage.dsn 不能为空"))
	}
	if c.LLM.Provider == "openai" && c.LLM.OpenAI.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm.openai 需要 API Key，可通过环境变量 %s 提供", c.LLM.OpenAI.APIKeyEnv))
	}
	if c.LLM.Provider == "python_bridge" && c.LLM.Python.ScriptPath == "" {
		errs = append(errs, errors.New("llm.python_bridge.script_path 不能为空"))
	}
	if c.Lock.Driver == "redis" && c.Lock.Redis.Address == "" {
		errs = append(errs, errors.New("lock.redis.address 不能为空"))
	}
	if c.Dispatch.Driver == "redis" && c.Dispatch.Redis.Address == "" {
		errs = append(errs, errors.New("dispatch.redis.address 不能为空"))
	}
	if c.Dispatch.Driver == "rabbitmq" && c.Dispatch.RabbitMQ.URL == "" {
		errs = append(errs, errors.New("dispatch.rabbitmq.url 不能为空"))
	}
	if err := c.Agents.CFO.DefaultSplit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("agents.cfo.default_split: %w", err))
	}
	return errors.Join(errs...)
}
