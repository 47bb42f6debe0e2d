package receipt

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SplitChain/internal/negotiate"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
)

const (
	defaultModelName = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second
)

// extractionPrompt 约定模型只返回三列 CSV：name,quantity,price。
const extractionPrompt = `Analyze this receipt image and extract all purchased items.
Return the data in CSV format with exactly 3 columns: name,quantity,price

Rules:
- Do NOT include headers in your response
- Each line should be: item_name,quantity,price
- quantity must be a number
- price is the total price for that line (quantity x unit price) as a decimal number
- Do NOT include currency symbols
- Do NOT include subtotal, tax, or tip lines
- Only extract the actual purchased items

Example:
Americano,1,4.50
Chocolate Chip Cookie,2,6.00`

// Config 描述小票识别所需的视觉模型配置。
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Extractor 把小票图片交给视觉模型识别，解析为结构化的账单行。
type Extractor struct {
	client *openai.Client
	model  string
}

// NewExtractor 创建小票识别器。
func NewExtractor(cfg Config) (*Extractor, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	return &Extractor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Extract 识别一张小票图片。返回账单行与模型的原始回复（便于排障）。
func (e *Extractor) Extract(ctx context.Context, image []byte, contentType string) ([]negotiate.LineItem, string, error) {
	if len(image) == 0 {
		return nil, "", errors.New("图片内容为空")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: extractionPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, "", fmt.Errorf("请求视觉模型失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, "", errors.New("视觉模型响应中没有有效的 choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	items, err := parseItems(raw)
	if err != nil {
		return nil, raw, err
	}
	return items, raw, nil
}

// parseItems 解析模型返回的 CSV 文本。列数不足的行直接忽略，
// 数量或价格不合法的行视为识别失败。
func parseItems(csvText string) ([]negotiate.LineItem, error) {
	reader := csv.NewReader(strings.NewReader(csvText))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析 CSV 失败: %w", err)
	}

	items := make([]negotiate.LineItem, 0, len(records))
	for _, record := range records {
		if len(record) < 3 {
			continue
		}
		quantity, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("无效的数量 %q: %w", record[1], err)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("无效的价格 %q: %w", record[2], err)
		}
		items = append(items, negotiate.LineItem{
			Name:     strings.TrimSpace(record[0]),
			Quantity: quantity,
			Price:    price,
		})
	}
	if len(items) == 0 {
		return nil, errors.New("未能从小票中识别出任何消费行")
	}
	return items, nil
}
