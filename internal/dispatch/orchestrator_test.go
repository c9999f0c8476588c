package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsend/wablast-backend/internal/logging"
	"github.com/brightsend/wablast-backend/internal/model"
)

func testItems(n int) []model.CampaignItem {
	items := make([]model.CampaignItem, n)
	for i := range items {
		items[i] = model.CampaignItem{
			ID:        i + 1,
			Recipient: fmt.Sprintf("+55119999000%02d", i),
			Status:    model.ItemPending,
		}
	}
	return items
}

func instantWait(waits *int) func(context.Context, time.Duration) error {
	return func(ctx context.Context, _ time.Duration) error {
		if waits != nil {
			*waits++
		}
		return ctx.Err()
	}
}

func alwaysSucceed(_ context.Context, _ model.CampaignItem) Result {
	return Result{Success: true, ProviderMessageID: "wamid.ok"}
}

func alwaysFail(_ context.Context, _ model.CampaignItem) Result {
	return Result{Success: false, Error: "provider rejected"}
}

func TestRunAllSucceed(t *testing.T) {
	orch := NewOrchestrator(logging.NewNop())
	var completed []Result
	var progress []int

	out := orch.Run(context.Background(), testItems(3), alwaysSucceed, Options{
		Delay:          DelayPolicy{MinDelay: 1, MaxDelay: 1},
		Wait:           instantWait(nil),
		OnItemComplete: func(r Result) { completed = append(completed, r) },
		OnProgress:     func(cur, _ int, _ string) { progress = append(progress, cur) },
	})

	assert.Equal(t, Outcome{Sent: 3, Failed: 0}, out)
	assert.Equal(t, model.StatusCompleted, out.TerminalStatus())
	require.Len(t, completed, 3)
	assert.Equal(t, []int{1, 2, 3}, progress)
	for i, r := range completed {
		assert.True(t, r.Success)
		assert.Equal(t, i+1, r.ItemID)
	}
}

func TestRunAllFail(t *testing.T) {
	orch := NewOrchestrator(logging.NewNop())

	out := orch.Run(context.Background(), testItems(3), alwaysFail, Options{
		Delay: DelayPolicy{MinDelay: 1, MaxDelay: 1},
		Wait:  instantWait(nil),
	})

	assert.Equal(t, Outcome{Sent: 0, Failed: 3}, out)
	assert.Equal(t, model.StatusFailed, out.TerminalStatus())
}

func TestRunPartialFailureCompletes(t *testing.T) {
	orch := NewOrchestrator(logging.NewNop())
	i := 0
	send := func(_ context.Context, _ model.CampaignItem) Result {
		i++
		return Result{Success: i%2 == 0, Error: "odd ones fail"}
	}

	out := orch.Run(context.Background(), testItems(4), send, Options{
		Delay: DelayPolicy{MinDelay: 1, MaxDelay: 1},
		Wait:  instantWait(nil),
	})

	assert.Equal(t, Outcome{Sent: 2, Failed: 2}, out)
	// at least one delivery means completed, even with partial failures
	assert.Equal(t, model.StatusCompleted, out.TerminalStatus())
}

func TestRunDelayOnlyBetweenSends(t *testing.T) {
	orch := NewOrchestrator(logging.NewNop())

	waits := 0
	orch.Run(context.Background(), testItems(4), alwaysSucceed, Options{
		Delay: DelayPolicy{MinDelay: 1, MaxDelay: 1},
		Wait:  instantWait(&waits),
	})
	assert.Equal(t, 3, waits, "n items pace n-1 waits")

	waits = 0
	orch.Run(context.Background(), testItems(1), alwaysSucceed, Options{
		Delay: DelayPolicy{MinDelay: 1, MaxDelay: 1},
		Wait:  instantWait(&waits),
	})
	assert.Zero(t, waits, "single recipient sends immediately")

	waits = 0
	out := orch.Run(context.Background(), nil, alwaysSucceed, Options{
		Delay: DelayPolicy{MinDelay: 1, MaxDelay: 1},
		Wait:  instantWait(&waits),
	})
	assert.Zero(t, waits)
	assert.Zero(t, out.Sent+out.Failed)
}

func TestRunStopAfterK(t *testing.T) {
	orch := NewOrchestrator(logging.NewNop())
	const k = 2
	attempted := 0
	var completions int

	out := orch.Run(context.Background(), testItems(5), func(ctx context.Context, item model.CampaignItem) Result {
		attempted++
		return Result{Success: true}
	}, Options{
		Delay: DelayPolicy{MinDelay: 1, MaxDelay: 1},
		Wait:  instantWait(nil),
		Stop:  func() bool { return attempted >= k },
		OnItemComplete: func(Result) { completions++ },
	})

	assert.True(t, out.Stopped)
	assert.Equal(t, k, out.Sent+out.Failed)
	assert.Equal(t, k, completions, "exactly one completion per attempted item")
	assert.Equal(t, model.StatusCancelled, out.TerminalStatus())
}

func TestRunContextCancellation(t *testing.T) {
	orch := NewOrchestrator(logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	sent := 0
	out := orch.Run(ctx, testItems(5), func(_ context.Context, _ model.CampaignItem) Result {
		sent++
		if sent == 3 {
			cancel()
		}
		return Result{Success: true}
	}, Options{
		Delay: DelayPolicy{MinDelay: 1, MaxDelay: 1},
		Wait:  instantWait(nil),
	})

	// the in-flight send finishes; no further sends start
	assert.True(t, out.Stopped)
	assert.Equal(t, 3, out.Sent)
}
