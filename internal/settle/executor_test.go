package settle

import (
	"context"
	"errors"
	"sync"
	"testing"

	xerrors "SplitChain/internal/errors"
	"SplitChain/internal/negotiate"
	"SplitChain/internal/observability/alerting"
	"SplitChain/internal/payment"

	"github.com/shopspring/decimal"
)

type stubPayClient struct {
	mu       sync.Mutex
	calls    []payment.Request
	failFrom map[string]error
}

func (s *stubPayClient) Pay(_ context.Context, req payment.Request) (*payment.Receipt, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if err, ok := s.failFrom[req.From.Name]; ok {
		return nil, err
	}
	return &payment.Receipt{
		TxHash: "0xdeadbeef",
		From:   req.From.Address,
		To:     req.To,
		Amount: req.Amount,
		Memo:   req.Memo,
	}, nil
}

func settleParties() []negotiate.Party {
	return []negotiate.Party{
		{Ordinal: 1, Name: "Alice", Address: "0xa1"},
		{Ordinal: 2, Name: "Bob", Address: "0xb2"},
		{Ordinal: 3, Name: "Carol", Address: "0xc3"},
		{Ordinal: 4, Name: "Dave", Address: "0xd4", Payer: true},
	}
}

func settleRegistry() *payment.Registry {
	return payment.NewRegistry([]payment.Credential{
		{Ordinal: 1, Name: "Alice", Address: "0xa1"},
		{Ordinal: 2, Name: "Bob", Address: "0xb2"},
		{Ordinal: 3, Name: "Carol", Address: "0xc3"},
	})
}

func TestExecutePlanSkipsPayerAndNonPositive(t *testing.T) {
	client := &stubPayClient{}
	executor := NewExecutor(client, settleRegistry(), settleParties())

	plan := negotiate.SettlementPlan{
		1: decimal.RequireFromString("5.00"),
		2: decimal.Zero,
		3: decimal.RequireFromString("-1.00"),
		4: decimal.RequireFromString("9.99"),
	}

	batch, err := executor.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(batch.Transfers))
	}
	if batch.Succeeded != 1 || batch.Failed != 0 {
		t.Fatalf("counts = %d/%d, want 1/0", batch.Succeeded, batch.Failed)
	}

	transfer := batch.Transfers[0]
	if transfer.Ordinal != 1 || transfer.From != "Alice" || transfer.To != "Dave" {
		t.Fatalf("unexpected transfer: %+v", transfer)
	}
	if transfer.Receipt == nil || transfer.Receipt.TxHash == "" {
		t.Fatalf("expected on-chain receipt")
	}
}

func TestExecutePlanIsolatesFailures(t *testing.T) {
	client := &stubPayClient{failFrom: map[string]error{"Bob": errors.New("insufficient funds")}}
	executor := NewExecutor(client, settleRegistry(), settleParties(), WithWorkerCount(2))

	plan := negotiate.SettlementPlan{
		1: decimal.RequireFromString("3.00"),
		2: decimal.RequireFromString("4.00"),
		3: decimal.RequireFromString("5.00"),
	}

	batch, err := executor.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Transfers) != 3 {
		t.Fatalf("transfers = %d, want 3", len(batch.Transfers))
	}
	if batch.Succeeded != 2 || batch.Failed != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", batch.Succeeded, batch.Failed)
	}

	// 批次顺序跟随花名册，不受并发完成顺序影响。
	for i, want := range []int{1, 2, 3} {
		if batch.Transfers[i].Ordinal != want {
			t.Fatalf("slot %d holds ordinal %d, want %d", i, batch.Transfers[i].Ordinal, want)
		}
	}

	failed := batch.Transfers[1]
	if failed.Status != StatusFailed || failed.Error != "insufficient funds" {
		t.Fatalf("unexpected failed transfer: %+v", failed)
	}
	if batch.Transfers[0].Status != StatusSuccess || batch.Transfers[2].Status != StatusSuccess {
		t.Fatalf("failure must not block the other transfers")
	}
}

func TestExecutePlanMissingCredential(t *testing.T) {
	client := &stubPayClient{}
	registry := payment.NewRegistry([]payment.Credential{
		{Ordinal: 2, Name: "Bob", Address: "0xb2"},
	})
	executor := NewExecutor(client, registry, settleParties())

	plan := negotiate.SettlementPlan{
		1: decimal.RequireFromString("3.00"),
		2: decimal.RequireFromString("4.00"),
	}

	batch, err := executor.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Succeeded != 1 || batch.Failed != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", batch.Succeeded, batch.Failed)
	}

	missing := batch.Transfers[0]
	if missing.Status != StatusFailed || missing.Error != "no wallet address configured" {
		t.Fatalf("unexpected transfer for missing credential: %+v", missing)
	}
	if len(client.calls) != 1 {
		t.Fatalf("pay calls = %d, want 1", len(client.calls))
	}
}

func TestExecuteDirect(t *testing.T) {
	client := &stubPayClient{}
	executor := NewExecutor(client, settleRegistry(), settleParties())

	owed := map[string]decimal.Decimal{
		"Alice": decimal.RequireFromString("3.00"),
		"Bob":   decimal.Zero,
		"Dave":  decimal.RequireFromString("8.00"),
	}

	batch, err := executor.ExecuteDirect(context.Background(), owed, "Dave", []string{"Alice", "Bob", "Carol", "Dave"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(batch.Transfers))
	}

	transfer := batch.Transfers[0]
	if transfer.From != "Alice" || !transfer.Amount.Equal(decimal.RequireFromString("3.00")) {
		t.Fatalf("unexpected transfer: %+v", transfer)
	}
}

func TestExecuteDirectUnknownNameFails(t *testing.T) {
	client := &stubPayClient{}
	executor := NewExecutor(client, settleRegistry(), settleParties())

	owed := map[string]decimal.Decimal{
		"Alice":   decimal.RequireFromString("3.00"),
		"Mallory": decimal.RequireFromString("7.00"),
	}

	batch, err := executor.ExecuteDirect(context.Background(), owed, "Dave", []string{"Alice", "Bob", "Carol", "Dave"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Transfers) != 2 {
		t.Fatalf("transfers = %d, want 2", len(batch.Transfers))
	}
	if batch.Succeeded != 1 || batch.Failed != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", batch.Succeeded, batch.Failed)
	}

	// 花名册之外的欠款人无法解析凭证，记为失败而不是被丢弃。
	unknown := batch.Transfers[1]
	if unknown.From != "Mallory" || unknown.Status != StatusFailed {
		t.Fatalf("unexpected transfer for unknown name: %+v", unknown)
	}
	if unknown.Error != "no wallet address configured" {
		t.Fatalf("error = %q, want no wallet address configured", unknown.Error)
	}
	if len(client.calls) != 1 {
		t.Fatalf("pay calls = %d, want 1", len(client.calls))
	}
}

type captureDispatcher struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (d *captureDispatcher) Notify(_ context.Context, event alerting.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func TestExecutePlanDispatchesAlertOnFailure(t *testing.T) {
	client := &stubPayClient{failFrom: map[string]error{"Alice": errors.New("insufficient funds")}}
	dispatcher := &captureDispatcher{}
	executor := NewExecutor(client, settleRegistry(), settleParties(), WithAlertDispatcher(dispatcher))

	plan := negotiate.SettlementPlan{
		1: decimal.RequireFromString("3.00"),
		2: decimal.RequireFromString("4.00"),
	}

	batch, err := executor.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Failed != 1 {
		t.Fatalf("failed = %d, want 1", batch.Failed)
	}

	if len(dispatcher.events) != 1 {
		t.Fatalf("alert events = %d, want 1", len(dispatcher.events))
	}
	event := dispatcher.events[0]
	if event.Code != xerrors.CodePaymentFailure || event.Party != "Alice" {
		t.Fatalf("unexpected alert event: %+v", event)
	}
	if event.Severity != xerrors.SeverityCritical {
		t.Fatalf("severity = %s, want critical", event.Severity)
	}
}

func TestExecutePlanWithoutClient(t *testing.T) {
	executor := NewExecutor(nil, settleRegistry(), settleParties())

	_, err := executor.ExecutePlan(context.Background(), negotiate.SettlementPlan{1: decimal.RequireFromString("1.00")})
	if err == nil {
		t.Fatalf("expected initialization error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("expected initialization failure code, got %s", xerrors.CodeOf(err))
	}
}

func TestExecutePlanEmpty(t *testing.T) {
	client := &stubPayClient{}
	executor := NewExecutor(client, settleRegistry(), settleParties())

	batch, err := executor.ExecutePlan(context.Background(), negotiate.SettlementPlan{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Transfers) != 0 || batch.ID == "" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}
