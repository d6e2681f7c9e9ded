package application

import (
	"sync"
	"time"
)

// DefaultThrottleWindow is the minimum interval between accepted readings
// from one device, independent of the advisory sampling interval.
const DefaultThrottleWindow = 10 * time.Second

// Gate rate-limits readings per device address. State lives in process
// memory only: after a restart the first reading is always accepted.
//
// Keys are the device identifier strings exactly as received; no
// normalization is applied.
type Gate struct {
	window time.Duration

	mu         sync.Mutex
	lastAccept map[string]time.Time
}

// NewGate constructs a throttle gate. A non-positive window falls back to
// the default.
func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	return &Gate{
		window:     window,
		lastAccept: make(map[string]time.Time),
	}
}

// Accept decides whether a reading from the device may proceed and, on
// acceptance, records now as the device's last-accepted timestamp. The check
// and the record are one critical section so two concurrent readings for the
// same device cannot both pass inside the window. Rejections leave the
// recorded timestamp untouched.
func (g *Gate) Accept(macAddress string, now time.Time) bool {
	if g == nil {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.lastAccept[macAddress]
	if seen && now.Sub(last) < g.window {
		return false
	}
	g.lastAccept[macAddress] = now
	return true
}

// Window returns the configured minimum interval.
func (g *Gate) Window() time.Duration {
	if g == nil {
		return 0
	}
	return g.window
}
