package history

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryRepositorySaveAndList(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := repo.Save(ctx, Record{
			ConversationID: "conv-1",
			Operation:      "send_eth",
			Address:        "0xAbC0000000000000000000000000000000000001",
			Summary:        fmt.Sprintf("transfer %d", i),
			Status:         StatusSuccess,
			CreatedAt:      int64(1000 + i),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	records, err := repo.ListByAddress(ctx, "0xabc0000000000000000000000000000000000001", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Summary != "transfer 4" {
		t.Fatalf("expected newest record first, got %q", records[0].Summary)
	}
	for _, record := range records {
		if record.ID == "" {
			t.Fatal("expected generated record ID")
		}
	}
}

func TestMemoryRepositoryAddressIsolation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, Record{Operation: "send_eth", Address: "0x01", Status: StatusSuccess}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Save(ctx, Record{Operation: "send_eth", Address: "0x02", Status: StatusFailure}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := repo.ListByAddress(ctx, "0x01", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Address != "0x01" {
		t.Fatalf("expected only 0x01 records, got %+v", records)
	}
}

func TestStampFillsMissingFields(t *testing.T) {
	record := Stamp(Record{Operation: "get_balance"})
	if record.ID == "" {
		t.Fatal("expected generated ID")
	}
	if record.CreatedAt == 0 {
		t.Fatal("expected generated timestamp")
	}

	fixed := Stamp(Record{ID: "fixed", CreatedAt: 42})
	if fixed.ID != "fixed" || fixed.CreatedAt != 42 {
		t.Fatalf("expected provided fields preserved, got %+v", fixed)
	}
}
