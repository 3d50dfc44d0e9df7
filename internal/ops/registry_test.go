package ops

import (
	"encoding/json"
	"testing"

	xerrors "ChainPilot/internal/errors"
)

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	desc := Descriptor{Name: "get_balance", Description: "余额查询", Kind: KindGetBalance}

	if err := registry.Register(desc); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := registry.Register(desc)
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if xerrors.CodeOf(err) != xerrors.CodeRegistryError {
		t.Fatalf("expected REGISTRY_ERROR, got %s", xerrors.CodeOf(err))
	}
}

func TestRegistryRejectsBadSchema(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(Descriptor{
		Name:        "broken",
		InputSchema: json.RawMessage(`{"type": 42}`),
	})
	if err == nil {
		t.Fatal("expected schema compilation to fail")
	}
}

func TestCatalogIsComplete(t *testing.T) {
	registry, err := NewCatalog()
	if err != nil {
		t.Fatalf("catalog init failed: %v", err)
	}

	descs := registry.List()
	if len(descs) != 16 {
		t.Fatalf("expected 16 operations, got %d", len(descs))
	}

	caps := registry.Capabilities()
	if len(caps) != len(descs) {
		t.Fatalf("capabilities length %d does not match catalog %d", len(caps), len(descs))
	}
	for i, desc := range descs {
		if caps[i].Name != desc.Name {
			t.Fatalf("capability %d: expected %s, got %s", i, desc.Name, caps[i].Name)
		}
		if len(caps[i].InputSchema) == 0 {
			t.Fatalf("operation %s advertises no schema", desc.Name)
		}
	}

	sessionBound := map[string]bool{
		OpWalletAddress: true, OpGetBalance: true, OpTransactionHistory: true,
		OpSendETH: true, OpSignMessage: true, OpCreateToken: true,
		OpSendToken: true, OpBatchTransfer: true,
	}
	for _, desc := range descs {
		if desc.RequiresSession != sessionBound[desc.Name] {
			t.Fatalf("operation %s: unexpected session requirement %v", desc.Name, desc.RequiresSession)
		}
	}
}

func TestValidateArgumentsEmptyPayload(t *testing.T) {
	registry, err := NewCatalog()
	if err != nil {
		t.Fatalf("catalog init failed: %v", err)
	}
	desc, ok := registry.Resolve(OpGetBlockNumber)
	if !ok {
		t.Fatal("get_block_number missing from catalog")
	}
	if err := desc.ValidateArguments(nil); err != nil {
		t.Fatalf("empty payload should validate for no-arg operations: %v", err)
	}

	desc, _ = registry.Resolve(OpSendETH)
	if err := desc.ValidateArguments(nil); err == nil {
		t.Fatal("send_eth must reject an empty payload")
	}
}

func TestParseAmountHelpers(t *testing.T) {
	wei, err := parseEtherToWei("1.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wei.String() != "1500000000000000000" {
		t.Fatalf("expected 1.5 ETH in wei, got %s", wei)
	}
	if formatEther(wei) != "1.5" {
		t.Fatalf("round trip failed: %s", formatEther(wei))
	}

	if _, err := parseEtherToWei("0.0000000000000000001"); err == nil {
		t.Fatal("sub-wei precision must be rejected")
	}
	if _, err := parseWholeUnits("1.5"); err == nil {
		t.Fatal("fractional token amount must be rejected")
	}
	if _, err := parseWholeUnits("0"); err == nil {
		t.Fatal("zero token amount must be rejected")
	}
}
