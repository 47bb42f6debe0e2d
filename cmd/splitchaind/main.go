package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"SplitChain/internal/api"
	"SplitChain/internal/config"
	"SplitChain/internal/llm"
	"SplitChain/internal/llm/openai"
	"SplitChain/internal/llm/scripted"
	"SplitChain/internal/negotiate"
	"SplitChain/internal/observability/alerting"
	"SplitChain/internal/payment"
	"SplitChain/internal/payment/ethereum"
	"SplitChain/internal/receipt"
	"SplitChain/internal/settle"
	"SplitChain/pkg/logger"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
)

// main 是 SplitChain 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("splitchaind 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env 不存在不算错误，正式环境通常直接注入环境变量。
	_ = godotenv.Load()

	configPath := os.Getenv("SPLITCHAIN_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "splitchain.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	// 初始化补全能力客户端。
	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	parties := buildParties(cfg)

	orchestrator := negotiate.New(llmClient, parties,
		negotiate.WithArgumentRounds(cfg.Negotiation.ArgumentRounds),
		negotiate.WithBoundMultiplier(cfg.Negotiation.BoundMultiplier),
		negotiate.WithTurnTimeout(time.Duration(cfg.LLM.OpenAI.TimeoutSeconds)*time.Second),
	)

	// 链上支付能力。未配置 RPC 时服务仍可启动，仅清算接口不可用。
	var payClient payment.Client
	if strings.TrimSpace(cfg.Chain.RPCURL) != "" {
		ethClient, err := ethereum.NewClient(ctx, ethereum.Config{
			RPCURL:        cfg.Chain.RPCURL,
			ChainID:       cfg.Chain.ChainID,
			TokenAddress:  cfg.Chain.TokenAddress,
			TokenDecimals: cfg.Chain.TokenDecimals,
			Timeout:       time.Duration(cfg.Chain.PaymentTimeoutSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		defer ethClient.Close()
		payClient = ethClient
	} else {
		logger.L().Warn("未配置链上 RPC，清算接口将不可用")
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	executor := settle.NewExecutor(payClient, registry, parties,
		settle.WithWorkerCount(cfg.Settlement.Workers),
		settle.WithAlertDispatcher(alerting.NewFanout(&alerting.LogNotifier{})),
	)

	// 小票识别与协商共用同一份 OpenAI 凭证。
	var extractor *receipt.Extractor
	if apiKey := resolveAPIKey(cfg); apiKey != "" {
		extractor, err = receipt.NewExtractor(receipt.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: time.Duration(cfg.LLM.OpenAI.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
	}

	logger.L().Info("splitchaind 启动",
		slog.String("address", cfg.Server.Address),
		slog.Int("parties", len(parties)),
		slog.String("llm_provider", cfg.LLM.Provider),
	)

	server := api.NewServer(cfg.Server.Address, cfg.Server.AllowedOrigins, orchestrator, executor, extractor)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// createLLMClient 根据配置选择补全能力的实现。
func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		apiKey := resolveAPIKey(cfg)
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: time.Duration(cfg.LLM.OpenAI.TimeoutSeconds) * time.Second,
		})
	case "scripted":
		return scripted.NewClient(), nil
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func resolveAPIKey(cfg *config.Config) string {
	apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
	if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
	}
	return apiKey
}

// buildParties 把配置中的参与方映射为协商花名册，序号按配置顺序。
func buildParties(cfg *config.Config) []negotiate.Party {
	parties := make([]negotiate.Party, 0, len(cfg.Parties))
	for i, pc := range cfg.Parties {
		parties = append(parties, negotiate.Party{
			Ordinal: i + 1,
			Name:    pc.Name,
			Address: pc.Address,
			Stance:  pc.Stance,
			Payer:   pc.Payer,
		})
	}
	return parties
}

// buildRegistry 从环境变量加载各参与方的签名私钥。未配置私钥的
// 参与方不进入注册表，其转账会被记为失败而不是中断整个批次。
func buildRegistry(cfg *config.Config) (*payment.Registry, error) {
	creds := make([]payment.Credential, 0, len(cfg.Parties))
	for i, pc := range cfg.Parties {
		if pc.PrivateKeyEnv == "" {
			continue
		}
		raw := strings.TrimSpace(os.Getenv(pc.PrivateKeyEnv))
		if raw == "" {
			logger.L().Warn("参与方私钥环境变量为空",
				slog.String("party", pc.Name),
				slog.String("env", pc.PrivateKeyEnv),
			)
			continue
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("解析参与方 %s 的私钥失败: %w", pc.Name, err)
		}
		creds = append(creds, payment.Credential{
			Ordinal:    i + 1,
			Name:       pc.Name,
			Address:    pc.Address,
			PrivateKey: key,
		})
	}
	return payment.NewRegistry(creds), nil
}
