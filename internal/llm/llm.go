package llm

import "context"

// Request 描述发送给大模型的一次协商发言请求。
type Request struct {
	// System 是角色设定，约束参与方的立场与输出格式。
	System string
	// Prompt 是本轮发言的完整上下文，包含账单、立场与历史发言。
	Prompt string
	// Participant 标记本次请求代表哪位参与方，仅用于日志与排障。
	Participant string
}

// Response 是大模型返回的自由文本发言。
type Response struct {
	Content string
}

// Client 定义了调用补全能力的统一接口。协商阶段的每一轮发言
// 都通过该接口同步完成，调用失败对整个协商请求是致命的。
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
