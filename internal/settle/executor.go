package settle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	xerrors "SplitChain/internal/errors"
	"SplitChain/internal/negotiate"
	"SplitChain/internal/observability/alerting"
	"SplitChain/internal/observability/metrics"
	"SplitChain/internal/payment"
	"SplitChain/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 转账状态。
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

const defaultWorkerCount = 3

// Transfer 记录一笔从参与方到收款方的转账尝试。
type Transfer struct {
	ID          string           `json:"id"`
	Ordinal     int              `json:"ordinal"`
	From        string           `json:"from"`
	FromAddress string           `json:"from_address,omitempty"`
	To          string           `json:"to"`
	ToAddress   string           `json:"to_address"`
	Amount      decimal.Decimal  `json:"amount"`
	Status      string           `json:"status"`
	Receipt     *payment.Receipt `json:"receipt,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Batch 是执行一份清算计划产生的有序转账序列。
// 顺序跟随花名册顺序，而不是完成顺序。
type Batch struct {
	ID        string     `json:"id"`
	Transfers []Transfer `json:"transfers"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
}

// Executor 负责把清算计划落实为真实转账，并对单笔失败做隔离：
// 某个参与方的转账失败绝不能阻止其它参与方的转账被尝试和上报。
type Executor struct {
	payClient payment.Client
	registry  *payment.Registry
	parties   []negotiate.Party
	workers   int
	alerter   alerting.Dispatcher
}

// ExecutorOption 定义可选配置。
type ExecutorOption func(*Executor)

// WithWorkerCount 设置并发执行转账的协程数量。
func WithWorkerCount(workers int) ExecutorOption {
	return func(e *Executor) {
		if workers > 0 {
			e.workers = workers
		}
	}
}

// WithAlertDispatcher 配置告警派发器，转账失败时通知。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ExecutorOption {
	return func(e *Executor) {
		e.alerter = dispatcher
	}
}

// NewExecutor 构造 Executor。parties 是固定花名册，其中恰好
// 一个收款方；凭证注册表按序号解析各参与方的支付凭证。
func NewExecutor(payClient payment.Client, registry *payment.Registry, parties []negotiate.Party, opts ...ExecutorOption) *Executor {
	e := &Executor{
		payClient: payClient,
		registry:  registry,
		parties:   append([]negotiate.Party(nil), parties...),
		workers:   defaultWorkerCount,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.workers <= 0 {
		e.workers = defaultWorkerCount
	}
	return e
}

// job 是一笔待执行的转账任务。
type job struct {
	ordinal int
	name    string
	amount  decimal.Decimal
}

// ExecutePlan 执行协商产出的清算计划。收款方从不出现在计划中；
// 金额小于等于零的参与方直接跳过，不产生转账记录。
func (e *Executor) ExecutePlan(ctx context.Context, plan negotiate.SettlementPlan) (*Batch, error) {
	if e.payClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置支付能力客户端")
	}

	payer := e.payer()
	jobs := make([]job, 0, len(plan))
	for _, party := range e.parties {
		if party.Payer {
			continue
		}
		amount, ok := plan[party.Ordinal]
		if !ok || !amount.IsPositive() {
			continue
		}
		jobs = append(jobs, job{ordinal: party.Ordinal, name: party.Name, amount: amount})
	}

	return e.run(ctx, jobs, payer), nil
}

// ExecuteDirect 执行非协商的直接支付流程：调用方直接给出每个人
// 的欠款映射。people 的顺序决定序号（第 i 个人对应序号 i）。
func (e *Executor) ExecuteDirect(ctx context.Context, owed map[string]decimal.Decimal, paidBy string, people []string) (*Batch, error) {
	if e.payClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置支付能力客户端")
	}

	payer := e.payer()
	jobs := make([]job, 0, len(owed))
	known := make(map[string]bool, len(people))
	for i, name := range people {
		known[name] = true
		amount, ok := owed[name]
		if !ok {
			continue
		}
		// 收款方不给自己转账。
		if name == paidBy {
			continue
		}
		if !amount.IsPositive() {
			continue
		}
		jobs = append(jobs, job{ordinal: i + 1, name: name, amount: amount})
	}

	// owed 中不在 people 里的名字无法解析序号与凭证。这类欠款
	// 必须出现在批次里并记为失败，而不是被悄悄丢弃。
	unknown := make([]string, 0)
	for name, amount := range owed {
		if known[name] || name == paidBy || !amount.IsPositive() {
			continue
		}
		unknown = append(unknown, name)
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		jobs = append(jobs, job{name: name, amount: owed[name]})
	}

	return e.run(ctx, jobs, payer), nil
}

// run 以受限的并发度执行任务。每个任务占用结果切片中的固定槽位，
// 合并时无需加锁，批次顺序天然与花名册一致。
func (e *Executor) run(ctx context.Context, jobs []job, payer negotiate.Party) *Batch {
	batch := &Batch{ID: uuid.NewString(), Transfers: make([]Transfer, len(jobs))}
	if len(jobs) == 0 {
		return batch
	}

	workers := e.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				batch.Transfers[idx] = e.execute(ctx, batch.ID, jobs[idx], payer)
			}
		}()
	}
	for idx := range jobs {
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	for _, transfer := range batch.Transfers {
		if transfer.Status == StatusSuccess {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
		metrics.ObserveTransfer(transfer.Status)
	}

	logger.Audit().Info("清算批次完成",
		slog.String("batch_id", batch.ID),
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("failed", batch.Failed),
	)
	return batch
}

// execute 执行单笔转账。所有失败都被吸收为 failed 记录，
// 不向上传播错误。
func (e *Executor) execute(ctx context.Context, batchID string, j job, payer negotiate.Party) Transfer {
	transfer := Transfer{
		ID:        uuid.NewString(),
		Ordinal:   j.ordinal,
		From:      j.name,
		To:        payer.Name,
		ToAddress: payer.Address,
		Amount:    j.amount,
	}

	cred, err := e.registry.Resolve(j.ordinal)
	if err != nil {
		transfer.Status = StatusFailed
		transfer.Error = "no wallet address configured"
		e.alert(ctx, batchID, transfer, xerrors.Wrap(xerrors.CodeConfiguration, err, "未能解析支付凭证"))
		return transfer
	}
	transfer.FromAddress = cred.Address

	receipt, err := e.payClient.Pay(ctx, payment.Request{
		From:   cred,
		To:     payer.Address,
		Amount: j.amount,
		Memo:   fmt.Sprintf("Bill split: %s pays %s", j.name, payer.Name),
	})
	if err != nil {
		transfer.Status = StatusFailed
		transfer.Error = err.Error()
		e.alert(ctx, batchID, transfer, xerrors.Wrap(xerrors.CodePaymentFailure, err, "转账执行失败"))
		return transfer
	}

	transfer.Status = StatusSuccess
	transfer.Receipt = receipt
	return transfer
}

// alert 上报一笔失败的转账。是否派发遵循错误码的告警属性。
func (e *Executor) alert(ctx context.Context, batchID string, transfer Transfer, cause error) {
	logger.L().Warn("转账失败",
		slog.String("batch_id", batchID),
		slog.String("party", transfer.From),
		slog.String("amount", transfer.Amount.String()),
		slog.Any("error", cause),
	)
	if e.alerter == nil || !xerrors.ShouldAlert(cause) {
		return
	}
	event := alerting.Event{
		Code:       xerrors.CodeOf(cause),
		Message:    transfer.Error,
		Severity:   xerrors.SeverityOf(cause),
		BatchID:    batchID,
		Party:      transfer.From,
		Amount:     transfer.Amount.StringFixed(2),
		OccurredAt: time.Now(),
	}
	if err := e.alerter.Notify(ctx, event); err != nil {
		logger.L().Warn("告警派发失败", slog.Any("error", err))
	}
}

// payer 返回花名册中的收款方。
func (e *Executor) payer() negotiate.Party {
	for _, party := range e.parties {
		if party.Payer {
			return party
		}
	}
	return negotiate.Party{}
}
