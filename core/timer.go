package core

import "time"

// Settle delays used during bring-up
const (
	// EnableSettle is how long a sensor needs after its enable line changes
	EnableSettle = 50 * time.Millisecond

	// AddressLatch is how long a sensor needs to latch a new bus address
	AddressLatch = 10 * time.Millisecond
)

// Sleeper blocks the caller for d. Bring-up code never sleeps directly so
// tests and simulations can substitute virtual time.
type Sleeper func(d time.Duration)

// SleepRecorder is a Sleeper that only accounts for the requested delays.
type SleepRecorder struct {
	Calls []time.Duration
	Total time.Duration
}

// Sleep records d without blocking
func (r *SleepRecorder) Sleep(d time.Duration) {
	r.Calls = append(r.Calls, d)
	r.Total += d
}

var defaultSleep Sleeper = time.Sleep
