package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Imagery     ImageryConfig     `yaml:"imagery"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
	Queue       QueueConfig       `yaml:"queue"`
}

// LLMConfig 补全服务相关配置
type LLMConfig struct {
	// Provider 取值 gemini 或 openai（OpenAI 兼容协议，两段式兼容模式）
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	// ReasoningModel 报告合成阶段使用的模型，为空时沿用 Model
	ReasoningModel string `yaml:"reasoning_model"`
	ThinkingBudget int    `yaml:"thinking_budget"`
	// GroundedStructuredOutput 联网检索与 JSON Schema 约束合并为一次调用
	GroundedStructuredOutput bool `yaml:"grounded_structured_output"`
	Timeout                  int  `yaml:"timeout"` // 秒
}

// ImageryConfig 卫星影像代理配置
type ImageryConfig struct {
	ProxyURL     string `yaml:"proxy_url"`
	Limit        int    `yaml:"limit"`
	LookbackDays int    `yaml:"lookback_days"`
	Timeout      int    `yaml:"timeout"` // 秒
}

// PipelineConfig 流水线行为配置
type PipelineConfig struct {
	EnrichSources bool `yaml:"enrich_sources"`
	MaxEnrich     int  `yaml:"max_enrich"`
	EnrichTimeout int  `yaml:"enrich_timeout"` // 秒
	RunTimeout    int  `yaml:"run_timeout"`    // 秒，仅用于 worker
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS     int `yaml:"qps"`
	RPM     int `yaml:"rpm"`
	Workers int `yaml:"workers"`
}

// DBConfig 报告归档数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// DSN 优先于分项配置
	DSN string `yaml:"dsn"`
}

// Enabled 是否配置了数据库
func (c DBConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

// ConnString 返回 lib/pq 连接串
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, port, c.User, c.Password, c.Name)
}

// QueueConfig RabbitMQ 任务队列配置
type QueueConfig struct {
	URL         string `yaml:"url"`
	JobQueue    string `yaml:"job_queue"`
	ResultQueue string `yaml:"result_queue"`
}

// LoadConfig 从指定路径加载配置，并用环境变量覆盖密钥类配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default 不依赖配置文件的默认配置（CLI 未提供配置文件时使用）
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg
}

// ApplyEnv 环境变量覆盖
func (c *Config) ApplyEnv() {
	setFromEnv(&c.LLM.APIKey, "GEMINI_API_KEY")
	setFromEnv(&c.LLM.APIKey, "LLM_API_KEY")
	setFromEnv(&c.LLM.Provider, "LLM_PROVIDER")
	setFromEnv(&c.LLM.BaseURL, "LLM_BASE_URL")
	setFromEnv(&c.LLM.Model, "LLM_MODEL")
	setFromEnv(&c.Imagery.ProxyURL, "IMAGERY_PROXY_URL")
	setFromEnv(&c.DB.DSN, "DATABASE_URL")
	setFromEnv(&c.Queue.URL, "RABBITMQ_URL")
	setFromEnv(&c.Log.Level, "LOG_LEVEL")
}

// ApplyDefaults 填充未配置项
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	if c.LLM.Model == "" && c.LLM.Provider == "gemini" {
		c.LLM.Model = "gemini-2.5-flash"
	}
	if c.LLM.ReasoningModel == "" {
		c.LLM.ReasoningModel = c.LLM.Model
	}
	if c.LLM.ThinkingBudget == 0 {
		c.LLM.ThinkingBudget = 8192
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 120
	}
	if c.Imagery.ProxyURL == "" {
		c.Imagery.ProxyURL = "http://localhost:3001"
	}
	if c.Imagery.Limit == 0 {
		c.Imagery.Limit = 5
	}
	if c.Imagery.LookbackDays == 0 {
		c.Imagery.LookbackDays = 30
	}
	if c.Imagery.Timeout == 0 {
		c.Imagery.Timeout = 30
	}
	if c.Pipeline.MaxEnrich == 0 {
		c.Pipeline.MaxEnrich = 5
	}
	if c.Pipeline.EnrichTimeout == 0 {
		c.Pipeline.EnrichTimeout = 10
	}
	if c.Pipeline.RunTimeout == 0 {
		c.Pipeline.RunTimeout = 600
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Concurrency.RPM == 0 {
		c.Concurrency.RPM = 60
	}
	if c.Concurrency.QPS == 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.Workers == 0 {
		c.Concurrency.Workers = 2
	}
	if c.Queue.JobQueue == "" {
		c.Queue.JobQueue = "forensic.verification.jobs"
	}
	if c.Queue.ResultQueue == "" {
		c.Queue.ResultQueue = "forensic.verification.results"
	}
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
