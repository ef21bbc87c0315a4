package payment

import "fmt"

// Action is the logical gateway operation an idempotency key scopes.
type Action string

// Gateway actions that carry idempotency keys.
const (
	ActionCreate  Action = "create"
	ActionCapture Action = "capture"
	ActionCancel  Action = "cancel"
	ActionRefund  Action = "refund"
)

// IdempotencyKey derives the deterministic key for one logical gateway
// operation on a booking. Repeated commands for the same (booking, action,
// payment version) collapse into one gateway-side effect; a modify bumps the
// version and so opens a fresh operation space.
func IdempotencyKey(bookingID string, action Action, paymentVersion int) string {
	return fmt.Sprintf("booking:%s:%s:v%d", bookingID, action, paymentVersion)
}
