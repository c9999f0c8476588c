package dispatch

import (
	"errors"
	"math/rand"
	"time"
)

var (
	ErrDelayRange    = errors.New("min_delay must be positive and not exceed max_delay")
	ErrThrottleRate  = errors.New("throttle rate must be between 10 and 100 messages per minute")
	ErrThrottleDelay = errors.New("throttle delay must be between 1 and 10 seconds")
	ErrUnknownPreset = errors.New("unknown throttle preset")
)

// Named throttle presets (rate msg/min, delay seconds).
const (
	PresetConservative = "conservative"
	PresetBalanced     = "balanced"
	PresetAggressive   = "aggressive"
)

var presets = map[string]ThrottleConfig{
	PresetConservative: {Enabled: true, Preset: PresetConservative, Rate: 20, DelaySeconds: 3},
	PresetBalanced:     {Enabled: true, Preset: PresetBalanced, Rate: 40, DelaySeconds: 2},
	PresetAggressive:   {Enabled: true, Preset: PresetAggressive, Rate: 60, DelaySeconds: 1},
}

// ThrottleConfig is the fixed-rate pacing alternative to the random delay
// envelope. DelaySeconds is authoritative for actual pacing; Rate is advisory
// and used for reporting and estimation.
type ThrottleConfig struct {
	Enabled      bool   `json:"enabled"`
	Preset       string `json:"preset,omitempty"`
	Rate         int    `json:"rate"`
	DelaySeconds int    `json:"delay_seconds"`
}

// Preset returns a copy of the named preset.
func Preset(name string) (ThrottleConfig, bool) {
	c, ok := presets[name]
	return c, ok
}

// SetRate sets a custom rate, clearing any preset selection. The delay keeps
// its previous value until explicitly edited.
func (c *ThrottleConfig) SetRate(rate int) {
	c.Rate = rate
	c.Preset = ""
}

// SetDelaySeconds sets a custom inter-message delay, clearing any preset
// selection.
func (c *ThrottleConfig) SetDelaySeconds(seconds int) {
	c.DelaySeconds = seconds
	c.Preset = ""
}

func (c ThrottleConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Rate < 10 || c.Rate > 100 {
		return ErrThrottleRate
	}
	if c.DelaySeconds < 1 || c.DelaySeconds > 10 {
		return ErrThrottleDelay
	}
	return nil
}

// EstimatedPerMinute derives the effective message rate from the
// authoritative delay.
func (c ThrottleConfig) EstimatedPerMinute() int {
	if c.DelaySeconds <= 0 {
		return 0
	}
	return 60 / c.DelaySeconds
}

// DelayPolicy computes the wait applied between consecutive sends. Default
// mode samples a uniform integer number of seconds in [MinDelay, MaxDelay];
// throttle mode applies the fixed configured delay instead.
type DelayPolicy struct {
	MinDelay int // seconds
	MaxDelay int
	Throttle ThrottleConfig
}

func (p DelayPolicy) Validate() error {
	if p.Throttle.Enabled {
		return p.Throttle.Validate()
	}
	if p.MinDelay <= 0 || p.MaxDelay < p.MinDelay {
		return ErrDelayRange
	}
	return nil
}

// NextDelay returns the pause before the next send. Callers invoke it only
// between sends, never before the first or after the last.
func (p DelayPolicy) NextDelay() time.Duration {
	if p.Throttle.Enabled {
		return time.Duration(p.Throttle.DelaySeconds) * time.Second
	}
	seconds := p.MinDelay
	if p.MaxDelay > p.MinDelay {
		seconds += rand.Intn(p.MaxDelay - p.MinDelay + 1)
	}
	return time.Duration(seconds) * time.Second
}
