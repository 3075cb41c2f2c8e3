package controller

import (
	"context"
	"sync"
)

// FlightState is the single in-flight slot of one conversation. Send, edit,
// and regenerate all check-and-set it atomically; a second mutating operation
// while it is set is rejected synchronously.
type FlightState struct {
	mu       sync.Mutex
	inFlight bool
	cancel   context.CancelFunc
}

func NewFlightState() *FlightState {
	return &FlightState{}
}

// Begin marks a stream as open. Returns ErrStreamInFlight if one already is.
func (fs *FlightState) Begin() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.inFlight {
		return ErrStreamInFlight
	}
	fs.inFlight = true
	return nil
}

// Finish clears the in-flight flag and the cancel handle.
func (fs *FlightState) Finish() {
	fs.mu.Lock()
	fs.inFlight = false
	fs.cancel = nil
	fs.mu.Unlock()
}

// InFlight reports whether a stream is open.
func (fs *FlightState) InFlight() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inFlight
}

// SetCancel stores the cancel function associated with the open stream.
func (fs *FlightState) SetCancel(cancel context.CancelFunc) {
	fs.mu.Lock()
	fs.cancel = cancel
	fs.mu.Unlock()
}

// Cancel triggers the stored cancel function if a stream is open.
func (fs *FlightState) Cancel() error {
	fs.mu.Lock()
	cancel := fs.cancel
	inFlight := fs.inFlight
	fs.mu.Unlock()
	if !inFlight || cancel == nil {
		return ErrNotStreaming
	}
	cancel()
	return nil
}
