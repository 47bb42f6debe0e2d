package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "splitchain.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
parties:
  - name: Alice
    address: "0xa1"
  - name: Bob
    address: "0xb2"
  - name: Carol
    address: "0xc3"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Address != ":8000" {
		t.Fatalf("address = %s, want :8000", cfg.Server.Address)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.OpenAI.Model != "gpt-4o-mini" {
		t.Fatalf("llm defaults = %+v", cfg.LLM)
	}
	if cfg.Negotiation.ArgumentRounds != 2 || cfg.Negotiation.BoundMultiplier != 1 {
		t.Fatalf("negotiation defaults = %+v", cfg.Negotiation)
	}
	if cfg.Settlement.Workers != 3 {
		t.Fatalf("workers = %d, want 3", cfg.Settlement.Workers)
	}
	if cfg.Chain.TokenDecimals != 6 {
		t.Fatalf("token decimals = %d, want 6", cfg.Chain.TokenDecimals)
	}

	// 未显式指定时，最后一位参与方默认为收款方。
	if !cfg.Parties[2].Payer {
		t.Fatalf("expected last party to default to payer")
	}
	if cfg.PayerOrdinal() != 3 {
		t.Fatalf("payer ordinal = %d, want 3", cfg.PayerOrdinal())
	}
}

func TestLoadExplicitPayer(t *testing.T) {
	path := writeConfig(t, `
negotiation:
  argument_rounds: 4
  bound_multiplier: 2
parties:
  - name: Alice
    address: "0xa1"
    payer: true
  - name: Bob
    address: "0xb2"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PayerOrdinal() != 1 {
		t.Fatalf("payer ordinal = %d, want 1", cfg.PayerOrdinal())
	}
	if cfg.Negotiation.ArgumentRounds != 4 || cfg.Negotiation.BoundMultiplier != 2 {
		t.Fatalf("negotiation = %+v", cfg.Negotiation)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "single party", content: `
parties:
  - name: Alice
    address: "0xa1"
`},
		{name: "two payers", content: `
parties:
  - name: Alice
    address: "0xa1"
    payer: true
  - name: Bob
    address: "0xb2"
    payer: true
  - name: Carol
    address: "0xc3"
    payer: true
`},
		{name: "missing address", content: `
parties:
  - name: Alice
  - name: Bob
    address: "0xb2"
`},
		{name: "missing name", content: `
parties:
  - name: ""
    address: "0xa1"
  - name: Bob
    address: "0xb2"
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
