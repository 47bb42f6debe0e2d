package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{name: "bare amount", text: "12.50", want: "12.5", found: true},
		{name: "dollar sign", text: "I will pay $12.50 to Carol.", want: "12.5", found: true},
		{name: "leftmost wins", text: "maybe 4.00, or 15.00 if you insist", want: "4", found: true},
		{name: "integer amount", text: "1250", want: "1250", found: true},
		{name: "euro with space", text: "€ 9.75 sounds fair", want: "9.75", found: true},
		{name: "no digits", text: "我不同意这个分法", want: "0", found: false},
		{name: "empty", text: "", want: "0", found: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := Extract(tc.text)
			if found != tc.found {
				t.Fatalf("found = %v, want %v", found, tc.found)
			}
			if got.String() != tc.want {
				t.Fatalf("amount = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCorrect(t *testing.T) {
	total := decimal.RequireFromString("20.00")

	cases := []struct {
		name       string
		amount     string
		multiplier int
		want       string
		status     Status
	}{
		{name: "within bound", amount: "5.00", multiplier: 1, want: "5", status: StatusAccepted},
		{name: "zero accepted", amount: "0", multiplier: 1, want: "0", status: StatusAccepted},
		{name: "equal to bound", amount: "20.00", multiplier: 1, want: "20", status: StatusAccepted},
		{name: "cents as dollars", amount: "1250", multiplier: 1, want: "12.5", status: StatusCorrected},
		{name: "still too large after correction", amount: "999999", multiplier: 1, want: "0", status: StatusZeroed},
		{name: "negative", amount: "-3.00", multiplier: 1, want: "0", status: StatusZeroed},
		{name: "lenient bound accepts", amount: "30.00", multiplier: 2, want: "30", status: StatusAccepted},
		{name: "zero multiplier falls back to strict", amount: "5.00", multiplier: 0, want: "5", status: StatusAccepted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tc.amount)
			got, status := Correct(amount, total, tc.multiplier)
			if status != tc.status {
				t.Fatalf("status = %s, want %s", status, tc.status)
			}
			if got.String() != tc.want {
				t.Fatalf("amount = %s, want %s", got, tc.want)
			}
		})
	}
}
