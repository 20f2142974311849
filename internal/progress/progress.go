package progress

import (
	"fmt"
	"sync"
	"time"
)

// Func receives a human-readable message and a completion fraction in [0, 1].
type Func func(message string, fraction float64)

// Phase represents the current phase of operation
type Phase string

const (
	PhaseScanning Phase = "scanning"
	PhaseCleaning Phase = "cleaning"
	PhaseComplete Phase = "complete"
)

// Update is one progress notification
type Update struct {
	Phase    Phase
	Message  string
	Fraction float64
	Elapsed  time.Duration
}

// ProgressReporter provides thread-safe progress fan-out to any number of listeners
type ProgressReporter struct {
	mu        sync.RWMutex
	last      *Update
	start     time.Time
	listeners []chan Update
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		start: time.Now(),
	}
}

// Subscribe returns a channel that receives progress updates
func (pr *ProgressReporter) Subscribe() <-chan Update {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	ch := make(chan Update, 10)
	pr.listeners = append(pr.listeners, ch)
	return ch
}

// Unsubscribe closes and removes a listener channel
func (pr *ProgressReporter) Unsubscribe(ch <-chan Update) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	for i, listener := range pr.listeners {
		if listener == ch {
			close(listener)
			pr.listeners = append(pr.listeners[:i], pr.listeners[i+1:]...)
			return
		}
	}
}

// Close closes every listener channel
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	for _, listener := range pr.listeners {
		close(listener)
	}
	pr.listeners = nil
}

// Func returns a callback that publishes updates in the given phase
func (pr *ProgressReporter) Func(phase Phase) Func {
	return func(message string, fraction float64) {
		pr.Publish(phase, message, fraction)
	}
}

// Publish records an update and notifies listeners
func (pr *ProgressReporter) Publish(phase Phase, message string, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	update := Update{
		Phase:    phase,
		Message:  message,
		Fraction: fraction,
		Elapsed:  time.Since(pr.start),
	}

	pr.mu.Lock()
	pr.last = &update
	listeners := make([]chan Update, len(pr.listeners))
	copy(listeners, pr.listeners)
	pr.mu.Unlock()

	// Notify all listeners (non-blocking)
	for _, listener := range listeners {
		select {
		case listener <- update:
		default:
			// Skip if channel is full
		}
	}
}

// Last returns the most recent update, or nil
func (pr *ProgressReporter) Last() *Update {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.last
}

// Format returns a single status line for an update
func Format(u Update) string {
	switch u.Phase {
	case PhaseComplete:
		return fmt.Sprintf("%s in %s", u.Message, FormatDuration(u.Elapsed))
	default:
		return fmt.Sprintf("[%3.0f%%] %s", u.Fraction*100, u.Message)
	}
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// Nop is a Func that discards updates
func Nop(string, float64) {}
