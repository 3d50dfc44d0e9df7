package assets

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPutAndResolveNormalizesSymbol(t *testing.T) {
	reg := NewMemoryRegistry()
	addr := common.HexToAddress("0x1000000000000000000000000000000000000001")

	if err := reg.Put("mtk", addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := reg.Resolve("MTK")
	if !ok {
		t.Fatal("expected symbol to resolve")
	}
	if got != addr {
		t.Fatalf("unexpected address %s", got.Hex())
	}
	if _, ok := reg.Resolve(" mtk "); !ok {
		t.Fatal("expected resolve to trim and upper-case the symbol")
	}
}

func TestPutRejectsDuplicate(t *testing.T) {
	reg := NewMemoryRegistry()
	addr := common.HexToAddress("0x1000000000000000000000000000000000000001")

	if err := reg.Put("MTK", addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := reg.Put("mtk", common.HexToAddress("0x2000000000000000000000000000000000000002"))
	if !errors.Is(err, ErrAssetExists) {
		t.Fatalf("expected ErrAssetExists, got %v", err)
	}

	// 原有映射保持不变。
	got, _ := reg.Resolve("MTK")
	if got != addr {
		t.Fatalf("duplicate Put must not overwrite, got %s", got.Hex())
	}
}

func TestPutRejectsEmptySymbol(t *testing.T) {
	reg := NewMemoryRegistry()
	if err := reg.Put("   ", common.Address{}); err == nil {
		t.Fatal("expected error for blank symbol")
	}
}

func TestConcurrentPutKeepsMapConsistent(t *testing.T) {
	reg := NewMemoryRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("TOK%d", i)
			addr := common.BigToAddress(common.Big1)
			_ = reg.Put(name, addr)
			_, _ = reg.Resolve(name)
		}(i)
	}
	wg.Wait()

	if len(reg.Names()) != 32 {
		t.Fatalf("expected 32 registered symbols, got %d", len(reg.Names()))
	}
}
