package payment

import (
	"errors"
	"testing"
)

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry([]Credential{
		{Ordinal: 1, Name: "Alice", Address: "0xa1"},
		{Ordinal: 2, Name: "Bob", Address: "0xb2"},
	})

	cred, err := registry.Resolve(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.Name != "Bob" || cred.Address != "0xb2" {
		t.Fatalf("unexpected credential: %+v", cred)
	}
}

func TestRegistryResolveMissing(t *testing.T) {
	registry := NewRegistry(nil)

	_, err := registry.Resolve(1)
	if !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}
