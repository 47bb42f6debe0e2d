package negotiate

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	xerrors "SplitChain/internal/errors"
	"SplitChain/internal/llm"
	"SplitChain/internal/money"
	"SplitChain/pkg/logger"

	"github.com/shopspring/decimal"
)

// 回合结构的默认值。
const (
	defaultArgumentRounds  = 2
	defaultBoundMultiplier = 1
)

// Orchestrator 驱动固定结构的多方协商：若干轮自由辩论，
// 然后每个非收款方给出最终承诺金额，产出清算计划。
type Orchestrator struct {
	llmClient       llm.Client
	parties         []Party
	argumentRounds  int
	boundMultiplier int
	turnTimeout     time.Duration
}

// Option 定义可选的 Orchestrator 配置。
type Option func(*Orchestrator)

// WithArgumentRounds 设置辩论的完整轮数。
func WithArgumentRounds(rounds int) Option {
	return func(o *Orchestrator) {
		if rounds > 0 {
			o.argumentRounds = rounds
		}
	}
}

// WithBoundMultiplier 设置金额纠偏边界的放大倍数（1 为严格，2 为宽松）。
func WithBoundMultiplier(multiplier int) Option {
	return func(o *Orchestrator) {
		if multiplier > 0 {
			o.boundMultiplier = multiplier
		}
	}
}

// WithTurnTimeout 设置单轮发言调用补全能力的超时时间。
func WithTurnTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.turnTimeout = timeout
		}
	}
}

// New 创建一个 Orchestrator。parties 是固定花名册，
// 每次协商请求都会基于它构建新的会话。
func New(llmClient llm.Client, parties []Party, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llmClient:       llmClient,
		parties:         append([]Party(nil), parties...),
		argumentRounds:  defaultArgumentRounds,
		boundMultiplier: defaultBoundMultiplier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Result 汇总一次协商的全部产出。
type Result struct {
	Transcript  []Turn          `json:"transcript"`
	Commitments []Commitment    `json:"commitments"`
	Plan        SettlementPlan  `json:"settlement_plan"`
	Total       decimal.Decimal `json:"total"`
}

// Negotiate 执行完整的协商流程。stances 按序号覆盖参与方的默认立场。
// 任何一轮补全调用失败都会使整个请求失败，不返回部分对话记录。
func (o *Orchestrator) Negotiate(ctx context.Context, items []LineItem, tip decimal.Decimal, stances map[int]string) (*Result, error) {
	if o.llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置补全能力客户端")
	}

	parties := append([]Party(nil), o.parties...)
	for i := range parties {
		if stance, ok := stances[parties[i].Ordinal]; ok {
			parties[i].Stance = stance
		}
	}

	session, err := NewSession(parties, items, tip)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "构建协商会话失败")
	}

	// 辩论阶段。回合内按花名册顺序依次发言，每位参与方的提示词
	// 包含截至当前的完整对话记录，因此回合不可并行。
	for round := 1; round <= o.argumentRounds; round++ {
		for _, party := range session.Parties() {
			reply, err := o.complete(ctx, llm.Request{
				System:      buildSystemPrompt(party),
				Prompt:      buildArgumentPrompt(session, party, round, o.argumentRounds),
				Participant: party.Name,
			})
			if err != nil {
				return nil, err
			}
			session.Append(party.Ordinal, reply)
		}
	}

	// 承诺阶段。先按花名册顺序收集所有非收款方的最终金额，
	// 收款方不调用模型，其承诺直接断言为零。
	commitments := make([]Commitment, 0, len(parties))
	plan := make(SettlementPlan)
	owed := decimal.Zero
	payer := session.Payer()

	for _, party := range session.Parties() {
		if party.Payer {
			continue
		}
		raw, err := o.complete(ctx, llm.Request{
			System:      buildSystemPrompt(party),
			Prompt:      buildCommitmentPrompt(session, party),
			Participant: party.Name,
		})
		if err != nil {
			return nil, err
		}

		extracted, found := money.Extract(raw)
		var corrected decimal.Decimal
		var status money.Status
		if !found {
			corrected, status = decimal.Zero, money.StatusZeroed
		} else {
			corrected, status = money.Correct(extracted, session.Total(), o.boundMultiplier)
		}

		commitments = append(commitments, Commitment{
			Ordinal:   party.Ordinal,
			Raw:       raw,
			Extracted: extracted,
			Corrected: corrected,
			Status:    status,
		})
		plan[party.Ordinal] = corrected
		owed = owed.Add(corrected)
		session.Append(party.Ordinal, fmt.Sprintf("I will pay $%s to %s.", corrected.StringFixed(2), payer.Name))

		logger.Audit().Info("协商承诺已记录",
			slog.Int("ordinal", party.Ordinal),
			slog.String("party", party.Name),
			slog.String("extracted", extracted.String()),
			slog.String("corrected", corrected.String()),
			slog.String("status", string(status)),
		)
	}

	// 收款方的零承诺。汇总金额来自已收集的非收款方承诺。
	commitments = append(commitments, Commitment{
		Ordinal:   payer.Ordinal,
		Raw:       "",
		Extracted: decimal.Zero,
		Corrected: decimal.Zero,
		Status:    money.StatusAccepted,
	})
	session.Append(payer.Ordinal, fmt.Sprintf("I will receive $%s from the others.", owed.StringFixed(2)))

	logger.Audit().Info("协商完成",
		slog.String("total", session.Total().String()),
		slog.String("owed", owed.String()),
		slog.Int("parties", len(parties)),
	)

	return &Result{
		Transcript:  session.Transcript(),
		Commitments: commitments,
		Plan:        plan,
		Total:       session.Total(),
	}, nil
}

// complete 调用补全能力完成一轮发言，套用单轮超时。
func (o *Orchestrator) complete(ctx context.Context, req llm.Request) (string, error) {
	callCtx := ctx
	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	resp, err := o.llmClient.Complete(callCtx, req)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return "", xerrors.Wrap(xerrors.CodeTimeout, err, "补全调用超时",
				xerrors.WithMetadata("participant", req.Participant))
		}
		return "", xerrors.Wrap(xerrors.CodeCompletionFailure, err, "补全调用失败",
			xerrors.WithMetadata("participant", req.Participant))
	}
	return resp.Content, nil
}
