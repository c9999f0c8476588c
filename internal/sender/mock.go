package sender

import (
	"context"
	"fmt"
	"math/rand"
)

// Mock simulates a provider for local development: succeeds with probability
// 1-FailRate and fabricates message ids.
type Mock struct {
	FailRate float64 // 0 never fails, 1 always fails
}

func (m *Mock) SendOne(_ context.Context, _ string, recipient string, _ Payload) (string, error) {
	if rand.Float64() < m.FailRate {
		return "", fmt.Errorf("mock sending failed")
	}
	return fmt.Sprintf("mock-%s-%d", recipient, rand.Intn(1_000_000)), nil
}
