package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 描述了 SplitChain 在启动阶段需要加载的核心配置。
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	Chain       ChainConfig       `yaml:"chain"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Settlement  SettlementConfig  `yaml:"settlement"`
	Parties     []PartyConfig     `yaml:"parties"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig 控制 API 服务的监听地址与跨域来源。
type ServerConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLMConfig 用于配置补全能力的調用方式。
type LLMConfig struct {
	Provider string       `yaml:"provider"`
	OpenAI   OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig 描述通过 OpenAI 接口完成推理时所需的信息。
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ChainConfig 包含访问区块链节点与稳定币合约所需的参数。
type ChainConfig struct {
	RPCURL                string `yaml:"rpc_url"`
	ChainID               int64  `yaml:"chain_id"`
	TokenAddress          string `yaml:"token_address"`
	TokenDecimals         int32  `yaml:"token_decimals"`
	PaymentTimeoutSeconds int    `yaml:"payment_timeout_seconds"`
}

// NegotiationConfig 控制协商回合的结构与金额纠偏的边界。
type NegotiationConfig struct {
	ArgumentRounds  int `yaml:"argument_rounds"`
	BoundMultiplier int `yaml:"bound_multiplier"`
}

// SettlementConfig 控制清算阶段的并发度。
type SettlementConfig struct {
	Workers int `yaml:"workers"`
}

// PartyConfig 描述一个分账参与方。私钥通过环境变量注入，
// 配置文件中只保存变量名。
type PartyConfig struct {
	Name          string `yaml:"name"`
	Address       string `yaml:"address"`
	PrivateKeyEnv string `yaml:"private_key_env"`
	Stance        string `yaml:"stance"`
	Payer         bool   `yaml:"payer"`
}

// LoggingConfig 映射到 pkg/logger 的初始化参数。
type LoggingConfig struct {
	Level       string             `yaml:"level"`
	Format      string             `yaml:"format"`
	OutputPaths []string           `yaml:"output_paths"`
	Audit       AuditLoggingConfig `yaml:"audit"`
}

// AuditLoggingConfig 控制审计日志输出。
type AuditLoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load 负责解析指定路径的 YAML 配置文件。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8000"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	if c.LLM.OpenAI.TimeoutSeconds <= 0 {
		c.LLM.OpenAI.TimeoutSeconds = 60
	}

	if c.Chain.TokenDecimals <= 0 {
		c.Chain.TokenDecimals = 6
	}
	if c.Chain.PaymentTimeoutSeconds <= 0 {
		c.Chain.PaymentTimeoutSeconds = 30
	}

	if c.Negotiation.ArgumentRounds <= 0 {
		c.Negotiation.ArgumentRounds = 2
	}
	if c.Negotiation.BoundMultiplier <= 0 {
		c.Negotiation.BoundMultiplier = 1
	}

	if c.Settlement.Workers <= 0 {
		c.Settlement.Workers = 3
	}

	// 未显式指定收款方时，按惯例由最后一位参与方垫付账单。
	if len(c.Parties) > 0 && c.payerCount() == 0 {
		c.Parties[len(c.Parties)-1].Payer = true
	}
}

// Validate 在任何外部调用发生之前校验配置的完整性。
func (c *Config) Validate() error {
	if len(c.Parties) < 2 {
		return errors.New("至少需要配置两个参与方")
	}
	if c.payerCount() != 1 {
		return errors.New("必须且只能指定一个收款方")
	}
	for i, party := range c.Parties {
		if strings.TrimSpace(party.Name) == "" {
			return fmt.Errorf("参与方 %d 缺少名称", i+1)
		}
		if strings.TrimSpace(party.Address) == "" {
			return fmt.Errorf("参与方 %s 缺少钱包地址", party.Name)
		}
	}
	return nil
}

// PayerOrdinal 返回收款方的序号（从 1 开始）。
func (c *Config) PayerOrdinal() int {
	for i, party := range c.Parties {
		if party.Payer {
			return i + 1
		}
	}
	return len(c.Parties)
}

func (c *Config) payerCount() int {
	count := 0
	for _, party := range c.Parties {
		if party.Payer {
			count++
		}
	}
	return count
}
