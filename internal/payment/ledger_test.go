package payment

import (
	"context"
	"testing"
)

// TestRecordEvent_FirstDelivery tests that a new event id is not a duplicate.
func TestRecordEvent_FirstDelivery(t *testing.T) {
	ledger := NewInMemoryEventLedger()

	dup, err := ledger.RecordEvent(context.Background(), "evt_1", "bk_1", "payment_intent.succeeded", []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Error("first delivery should not be a duplicate")
	}
}

// TestRecordEvent_Redelivery tests that the same event id is reported as a
// duplicate without an error.
func TestRecordEvent_Redelivery(t *testing.T) {
	ledger := NewInMemoryEventLedger()
	ctx := context.Background()

	if _, err := ledger.RecordEvent(ctx, "evt_dup", "bk_1", "charge.captured", []byte(`{}`)); err != nil {
		t.Fatalf("first record failed: %v", err)
	}

	dup, err := ledger.RecordEvent(ctx, "evt_dup", "bk_1", "charge.captured", []byte(`{}`))
	if err != nil {
		t.Fatalf("redelivery should not error: %v", err)
	}
	if !dup {
		t.Error("redelivery should be reported as duplicate")
	}
}

// TestRecordEvent_DistinctIDs tests that distinct event ids for one booking
// are all retained for audit.
func TestRecordEvent_DistinctIDs(t *testing.T) {
	ledger := NewInMemoryEventLedger()
	ctx := context.Background()

	ids := []string{"evt_a", "evt_b", "evt_c"}
	for _, id := range ids {
		dup, err := ledger.RecordEvent(ctx, id, "bk_1", "payment_intent.succeeded", nil)
		if err != nil || dup {
			t.Fatalf("recording %s: dup=%v err=%v", id, dup, err)
		}
	}

	if got := len(ledger.Events("bk_1")); got != len(ids) {
		t.Errorf("expected %d ledger rows, got %d", len(ids), got)
	}
}
