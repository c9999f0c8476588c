package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDelayDegenerateRange(t *testing.T) {
	p := DelayPolicy{MinDelay: 5, MaxDelay: 5}
	for i := 0; i < 50; i++ {
		assert.Equal(t, 5*time.Second, p.NextDelay())
	}
}

func TestNextDelayStaysInsideEnvelope(t *testing.T) {
	p := DelayPolicy{MinDelay: 2, MaxDelay: 7}
	for i := 0; i < 200; i++ {
		d := p.NextDelay()
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 7*time.Second)
		assert.Zero(t, d%time.Second, "delays are whole seconds")
	}
}

func TestNextDelayThrottleIsAuthoritative(t *testing.T) {
	// A custom config may set rate and delay independently; the delay wins.
	p := DelayPolicy{
		MinDelay: 1,
		MaxDelay: 60,
		Throttle: ThrottleConfig{Enabled: true, Rate: 40, DelaySeconds: 4},
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, 4*time.Second, p.NextDelay())
	}
}

func TestDelayPolicyValidation(t *testing.T) {
	assert.NoError(t, DelayPolicy{MinDelay: 3, MaxDelay: 8}.Validate())
	assert.ErrorIs(t, DelayPolicy{MinDelay: 0, MaxDelay: 8}.Validate(), ErrDelayRange)
	assert.ErrorIs(t, DelayPolicy{MinDelay: 9, MaxDelay: 8}.Validate(), ErrDelayRange)

	throttled := DelayPolicy{Throttle: ThrottleConfig{Enabled: true, Rate: 5, DelaySeconds: 2}}
	assert.ErrorIs(t, throttled.Validate(), ErrThrottleRate)
	throttled.Throttle = ThrottleConfig{Enabled: true, Rate: 40, DelaySeconds: 11}
	assert.ErrorIs(t, throttled.Validate(), ErrThrottleDelay)
}

func TestPresets(t *testing.T) {
	cases := []struct {
		name  string
		rate  int
		delay int
	}{
		{PresetConservative, 20, 3},
		{PresetBalanced, 40, 2},
		{PresetAggressive, 60, 1},
	}
	for _, tc := range cases {
		c, ok := Preset(tc.name)
		require.True(t, ok, tc.name)
		assert.True(t, c.Enabled)
		assert.Equal(t, tc.rate, c.Rate)
		assert.Equal(t, tc.delay, c.DelaySeconds)
		assert.NoError(t, c.Validate())
	}
	_, ok := Preset("reckless")
	assert.False(t, ok)
}

func TestCustomRateClearsPreset(t *testing.T) {
	c, ok := Preset(PresetConservative)
	require.True(t, ok)

	c.SetRate(35)
	assert.Empty(t, c.Preset)
	assert.Equal(t, 35, c.Rate)
	// delay keeps its previous value until explicitly edited
	assert.Equal(t, 3, c.DelaySeconds)

	c.SetDelaySeconds(5)
	assert.Equal(t, 5, c.DelaySeconds)
}

func TestEstimatedPerMinute(t *testing.T) {
	c := ThrottleConfig{Enabled: true, Rate: 40, DelaySeconds: 2}
	assert.Equal(t, 30, c.EstimatedPerMinute())
	assert.Zero(t, ThrottleConfig{}.EstimatedPerMinute())
}
