package negotiate

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewSessionComputesTotal(t *testing.T) {
	session, err := NewSession(testParties(), testItems(), decimal.RequireFromString("1.50"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !session.Total().Equal(decimal.RequireFromString("7.50")) {
		t.Fatalf("total = %s, want 7.50", session.Total())
	}
	if session.Payer().Name != "Carol" {
		t.Fatalf("payer = %s, want Carol", session.Payer().Name)
	}
}

func TestNewSessionValidation(t *testing.T) {
	cases := []struct {
		name    string
		parties []Party
		items   []LineItem
		tip     string
	}{
		{name: "no items", parties: testParties(), items: nil, tip: "0"},
		{name: "negative tip", parties: testParties(), items: testItems(), tip: "-1"},
		{
			name: "no payer",
			parties: []Party{
				{Ordinal: 1, Name: "Alice", Address: "0xa1"},
				{Ordinal: 2, Name: "Bob", Address: "0xb2"},
			},
			items: testItems(), tip: "0",
		},
		{
			name: "ordinal gap",
			parties: []Party{
				{Ordinal: 1, Name: "Alice", Address: "0xa1"},
				{Ordinal: 3, Name: "Carol", Address: "0xc3", Payer: true},
			},
			items: testItems(), tip: "0",
		},
		{
			name: "zero quantity",
			parties: []Party{
				{Ordinal: 1, Name: "Alice", Address: "0xa1"},
				{Ordinal: 2, Name: "Carol", Address: "0xc3", Payer: true},
			},
			items: []LineItem{{Name: "Coffee", Quantity: 0, Price: decimal.RequireFromString("4.00")}},
			tip:   "0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSession(tc.parties, tc.items, decimal.RequireFromString(tc.tip))
			if err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestTranscriptIsCopied(t *testing.T) {
	session, err := NewSession(testParties(), testItems(), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session.Append(1, "first")

	transcript := session.Transcript()
	transcript[0].Text = "mutated"

	if session.Transcript()[0].Text != "first" {
		t.Fatalf("transcript must not share backing storage with callers")
	}
}
