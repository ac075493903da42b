package reservations

import (
	"crypto/rand"
	"fmt"
	"time"
)

// orderNumberAlphabet omits lookalike characters so the label reads
// cleanly over the counter.
const orderNumberAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const orderNumberSuffixLen = 6

// generateOrderNumber builds the human-facing pickup label, e.g.
// PD-20260828-4F7KQ2. It is a label, not an identity; lookups use the
// reservation ID.
func generateOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, orderNumberSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	for i := range buf {
		buf[i] = orderNumberAlphabet[int(buf[i])%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("PD-%s-%s", now.UTC().Format("20060102"), string(buf)), nil
}
