package negotiation

import "time"

// RoundClock tracks whether a round is active and its time bounds. It never
// expires on its own: callers check Expire on every inbound message.
type RoundClock struct {
	active      bool
	started     bool
	startTime   time.Time
	stopTime    time.Time
	endTime     time.Time
	duration    time.Duration
	roundNumber int
}

// RoundState is a copy of the clock for reporting.
type RoundState struct {
	Active      bool      `json:"active"`
	RoundNumber int       `json:"round_number"`
	DurationSec float64   `json:"round_duration_sec"`
	StartTime   time.Time `json:"start_time,omitempty"`
	StopTime    time.Time `json:"stop_time,omitempty"`
	EndTime     time.Time `json:"end_time,omitempty"`
}

// Start begins a round, overwriting any prior state.
func (c *RoundClock) Start(d time.Duration, roundNumber int, now time.Time) {
	*c = RoundClock{
		active:      true,
		started:     true,
		startTime:   now,
		stopTime:    now.Add(d),
		duration:    d,
		roundNumber: roundNumber,
	}
}

func (c *RoundClock) Stop(now time.Time) {
	c.active = false
	c.endTime = now
}

// Remaining returns stopTime - now, or zero if no round was ever started.
func (c *RoundClock) Remaining(now time.Time) time.Duration {
	if !c.started {
		return 0
	}
	return c.stopTime.Sub(now)
}

// Expire clears the active flag once the round has run out and reports
// whether the round is still active.
func (c *RoundClock) Expire(now time.Time) bool {
	if c.active && c.Remaining(now) <= 0 {
		c.active = false
		c.endTime = c.stopTime
	}
	return c.active
}

func (c *RoundClock) Active() bool { return c.active }

func (c *RoundClock) Duration() time.Duration { return c.duration }

func (c *RoundClock) RoundNumber() int { return c.roundNumber }

// ElapsedFraction is the share of the round already used, in [0, 1].
func (c *RoundClock) ElapsedFraction(now time.Time) float64 {
	return elapsedFraction(c.Remaining(now), c.duration)
}

func (c *RoundClock) State() RoundState {
	return RoundState{
		Active:      c.active,
		RoundNumber: c.roundNumber,
		DurationSec: c.duration.Seconds(),
		StartTime:   c.startTime,
		StopTime:    c.stopTime,
		EndTime:     c.endTime,
	}
}

func elapsedFraction(remaining, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	f := 1 - remaining.Seconds()/duration.Seconds()
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
