package session

import (
	"strings"
	"testing"
)

// 固定测试私钥，派生地址为确定值。
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testKeyAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestSetCredentialDerivesAddress(t *testing.T) {
	s := New()

	id, err := s.SetCredential(testKeyHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Address.Hex() != testKeyAddr {
		t.Fatalf("unexpected address %s", id.Address.Hex())
	}

	got, ok := s.Identity()
	if !ok {
		t.Fatal("expected identity to be present")
	}
	if got.Address != id.Address {
		t.Fatalf("identity mismatch: %s vs %s", got.Address.Hex(), id.Address.Hex())
	}
	if _, ok := s.Key(); !ok {
		t.Fatal("expected key to be present")
	}
}

func TestSetCredentialAcceptsHexPrefix(t *testing.T) {
	s := New()
	id, err := s.SetCredential("0x" + testKeyHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.EqualFold(id.Address.Hex(), testKeyAddr) {
		t.Fatalf("unexpected address %s", id.Address.Hex())
	}
}

func TestSetCredentialRejectsGarbage(t *testing.T) {
	s := New()
	if _, err := s.SetCredential("not-a-key"); err == nil {
		t.Fatal("expected error for invalid key material")
	}
	if _, ok := s.Identity(); ok {
		t.Fatal("invalid credential must not leave an identity behind")
	}
}

func TestSetCredentialReplacesExisting(t *testing.T) {
	s := New()
	if _, err := s.SetCredential(testKeyHex); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other := "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	id, err := s.SetCredential(other)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Address.Hex() == testKeyAddr {
		t.Fatal("expected replacement credential to derive a different address")
	}
}

func TestClearCredentialIdempotent(t *testing.T) {
	s := New()
	if _, err := s.SetCredential(testKeyHex); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.ClearCredential()
	s.ClearCredential()

	if _, ok := s.Identity(); ok {
		t.Fatal("expected no identity after clear")
	}
	if _, ok := s.Key(); ok {
		t.Fatal("expected no key after clear")
	}
}
