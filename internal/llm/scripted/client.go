package scripted

import (
	"context"
	"strings"
	"sync"

	"SplitChain/internal/llm"
	"SplitChain/internal/money"
)

// Client 是离线演示用的确定性补全实现。它不访问任何外部服务，
// 按顺序回放预置的发言；预置发言耗尽后，会回退到回显策略：
// 普通回合返回固定措辞，要求报数的回合回显提示词中的第一个金额。
type Client struct {
	mu      sync.Mutex
	replies []string
	next    int
}

// NewClient 创建脚本化客户端。replies 为空时完全依赖回退策略。
func NewClient(replies ...string) *Client {
	return &Client{replies: replies}
}

// Complete 返回下一条脚本发言。
func (c *Client) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next < len(c.replies) {
		reply := c.replies[c.next]
		c.next++
		return &llm.Response{Content: reply}, nil
	}

	// 要求只回数字的回合：回显提示词中的第一个金额，
	// 保证演示流程可以走到清算阶段。
	if strings.Contains(req.Prompt, "digits") || strings.Contains(req.Prompt, "数字") {
		if amount, ok := money.Extract(req.Prompt); ok {
			return &llm.Response{Content: amount.StringFixed(2)}, nil
		}
		return &llm.Response{Content: "0"}, nil
	}

	return &llm.Response{Content: "我认为按各自消费的项目分摊，小费平均分担，这样最公平。"}, nil
}
