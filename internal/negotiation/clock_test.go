package negotiation

import (
	"testing"
	"time"
)

func TestRoundClock_NeverStarted(t *testing.T) {
	var c RoundClock
	if c.Active() {
		t.Fatalf("zero clock is active")
	}
	if r := c.Remaining(t0); r != 0 {
		t.Fatalf("remaining=%v want 0", r)
	}
	if c.Expire(t0) {
		t.Fatalf("zero clock reports active after Expire")
	}
}

func TestRoundClock_ExpiresLazily(t *testing.T) {
	c := startedClock(time.Minute)
	if !c.Expire(t0.Add(59 * time.Second)) {
		t.Fatalf("round inactive before stop time")
	}
	// Nothing changes without an Expire call.
	if !c.Active() {
		t.Fatalf("round went inactive on its own")
	}
	if c.Expire(t0.Add(time.Minute)) {
		t.Fatalf("round still active at stop time")
	}
	st := c.State()
	if st.Active || !st.EndTime.Equal(t0.Add(time.Minute)) {
		t.Fatalf("state=%+v", st)
	}
}

func TestRoundClock_StartOverwritesAndStop(t *testing.T) {
	c := startedClock(time.Minute)
	c.Stop(t0.Add(10 * time.Second))
	if c.Active() {
		t.Fatalf("active after Stop")
	}
	later := t0.Add(time.Hour)
	c.Start(5*time.Minute, 7, later)
	if !c.Active() || c.RoundNumber() != 7 || c.Duration() != 5*time.Minute {
		t.Fatalf("state=%+v", c.State())
	}
	if !c.State().EndTime.IsZero() {
		t.Fatalf("end time carried over from previous round")
	}
	if r := c.Remaining(later.Add(time.Minute)); r != 4*time.Minute {
		t.Fatalf("remaining=%v", r)
	}
}

func TestRoundClock_ElapsedFraction(t *testing.T) {
	c := startedClock(100 * time.Second)
	cases := []struct {
		at   time.Duration
		want float64
	}{
		{-10 * time.Second, 0},
		{0, 0},
		{25 * time.Second, 0.25},
		{100 * time.Second, 1},
		{time.Hour, 1},
	}
	for _, tc := range cases {
		if got := c.ElapsedFraction(t0.Add(tc.at)); got != tc.want {
			t.Fatalf("elapsed at %v = %v want %v", tc.at, got, tc.want)
		}
	}
	if got := elapsedFraction(time.Second, 0); got != 1 {
		t.Fatalf("zero duration elapsed=%v want 1", got)
	}
}
