package application

import (
	"sync"
	"testing"
	"time"
)

func TestGateFirstReportAccepted(t *testing.T) {
	gate := NewGate(DefaultThrottleWindow)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if !gate.Accept("AA:BB:CC:DD:EE:FF", now) {
		t.Fatalf("expected first report to pass the gate")
	}
}

func TestGateRejectsWithinWindow(t *testing.T) {
	gate := NewGate(10 * time.Second)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if !gate.Accept("AA:BB:CC:DD:EE:FF", now) {
		t.Fatalf("expected first report to pass the gate")
	}
	if gate.Accept("AA:BB:CC:DD:EE:FF", now.Add(9*time.Second)) {
		t.Fatalf("expected report 9s later to be rejected")
	}
	// A rejection must not move the window.
	if !gate.Accept("AA:BB:CC:DD:EE:FF", now.Add(10*time.Second)) {
		t.Fatalf("expected report at exactly 10s to be accepted")
	}
}

func TestGateWindowAnchoredToLastAccept(t *testing.T) {
	gate := NewGate(10 * time.Second)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if !gate.Accept("AA:BB:CC:DD:EE:FF", now) {
		t.Fatalf("first accept failed")
	}
	if !gate.Accept("AA:BB:CC:DD:EE:FF", now.Add(15*time.Second)) {
		t.Fatalf("second accept failed")
	}
	if gate.Accept("AA:BB:CC:DD:EE:FF", now.Add(20*time.Second)) {
		t.Fatalf("expected rejection 5s after the second accept")
	}
}

func TestGateDevicesIndependent(t *testing.T) {
	gate := NewGate(10 * time.Second)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if !gate.Accept("AA:BB:CC:DD:EE:01", now) {
		t.Fatalf("device 1 first accept failed")
	}
	if !gate.Accept("AA:BB:CC:DD:EE:02", now) {
		t.Fatalf("device 2 must not share device 1's window")
	}
	// Addresses are compared as exact strings, case included.
	if !gate.Accept("aa:bb:cc:dd:ee:01", now) {
		t.Fatalf("differently cased address must count as a separate device")
	}
}

func TestGateConcurrentSameDevice(t *testing.T) {
	gate := NewGate(10 * time.Second)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- gate.Accept("AA:BB:CC:DD:EE:FF", now)
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for ok := range results {
		if ok {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one concurrent report to pass, got %d", accepted)
	}
}
