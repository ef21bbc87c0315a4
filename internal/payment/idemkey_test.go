package payment

import "testing"

// TestIdempotencyKey_Deterministic verifies repeated derivations are byte-identical.
func TestIdempotencyKey_Deterministic(t *testing.T) {
	a := IdempotencyKey("bk_123", ActionCapture, 2)
	b := IdempotencyKey("bk_123", ActionCapture, 2)
	if a != b {
		t.Errorf("keys differ for identical inputs: %q vs %q", a, b)
	}
	if a != "booking:bk_123:capture:v2" {
		t.Errorf("unexpected key format: %q", a)
	}
}

// TestIdempotencyKey_DistinctComponents verifies any differing component
// yields a different key.
func TestIdempotencyKey_DistinctComponents(t *testing.T) {
	base := IdempotencyKey("bk_123", ActionCapture, 1)

	variants := []string{
		IdempotencyKey("bk_456", ActionCapture, 1),
		IdempotencyKey("bk_123", ActionCancel, 1),
		IdempotencyKey("bk_123", ActionCapture, 2),
	}
	for _, v := range variants {
		if v == base {
			t.Errorf("variant key %q collides with base", v)
		}
	}
}
