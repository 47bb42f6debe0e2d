package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("连接被拒绝")
	err := Wrap(CodePaymentFailure, cause, "转账执行失败")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("wrapped error must match its cause")
	}
	if CodeOf(err) != CodePaymentFailure {
		t.Fatalf("code = %s, want %s", CodeOf(err), CodePaymentFailure)
	}
}

func TestHelpersOnForeignError(t *testing.T) {
	plain := stdErrors.New("临时故障")

	if _, ok := From(plain); ok {
		t.Fatalf("From must reject errors outside the taxonomy")
	}
	if RetryableError(plain) {
		t.Fatalf("foreign errors are not retryable")
	}
	if ShouldAlert(plain) {
		t.Fatalf("foreign errors must not alert")
	}
	if CodeOf(plain) != CodeUnknown {
		t.Fatalf("code = %s, want %s", CodeOf(plain), CodeUnknown)
	}
}

func TestHelpersFollowRegistryAttributes(t *testing.T) {
	err := New(CodePaymentFailure, "转账执行失败")

	if !RetryableError(err) {
		t.Fatalf("payment failures are retryable by registry default")
	}
	if !ShouldAlert(err) {
		t.Fatalf("payment failures alert by registry default")
	}
	if SeverityOf(err) != SeverityCritical {
		t.Fatalf("severity = %s, want %s", SeverityOf(err), SeverityCritical)
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	err := New(CodePaymentFailure, "转账执行失败",
		WithRetryable(false),
		WithAlert(false),
		WithSeverity(SeverityInfo),
		WithMetadata("party", "Alice"),
	)

	if RetryableError(err) || ShouldAlert(err) {
		t.Fatalf("options must override registry defaults")
	}
	if SeverityOf(err) != SeverityInfo {
		t.Fatalf("severity = %s, want %s", SeverityOf(err), SeverityInfo)
	}
	if err.Metadata()["party"] != "Alice" {
		t.Fatalf("metadata = %v", err.Metadata())
	}
}

func TestWrappedTaxonomyThroughLayers(t *testing.T) {
	inner := New(CodeTimeout, "补全调用超时")
	outer := fmt.Errorf("第 2 轮发言失败: %w", inner)

	if CodeOf(outer) != CodeTimeout {
		t.Fatalf("code = %s, want %s", CodeOf(outer), CodeTimeout)
	}
	if !ShouldAlert(outer) {
		t.Fatalf("timeout errors alert by registry default")
	}
}
