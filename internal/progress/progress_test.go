package progress

import (
	"strings"
	"testing"
	"time"
)

func TestPublishFanOut(t *testing.T) {
	pr := NewProgressReporter()
	a := pr.Subscribe()
	b := pr.Subscribe()

	pr.Func(PhaseScanning)("Scanning caches", 0.5)

	for _, ch := range []<-chan Update{a, b} {
		select {
		case u := <-ch:
			if u.Message != "Scanning caches" || u.Fraction != 0.5 || u.Phase != PhaseScanning {
				t.Errorf("unexpected update %+v", u)
			}
		case <-time.After(time.Second):
			t.Fatal("listener did not receive update")
		}
	}

	if last := pr.Last(); last == nil || last.Message != "Scanning caches" {
		t.Errorf("Last() = %+v", last)
	}
}

func TestPublishClampsFraction(t *testing.T) {
	pr := NewProgressReporter()
	pr.Publish(PhaseCleaning, "x", 3)
	if got := pr.Last().Fraction; got != 1 {
		t.Errorf("fraction = %v, want 1", got)
	}
	pr.Publish(PhaseCleaning, "x", -1)
	if got := pr.Last().Fraction; got != 0 {
		t.Errorf("fraction = %v, want 0", got)
	}
}

func TestPublishDoesNotBlockOnFullListener(t *testing.T) {
	pr := NewProgressReporter()
	pr.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pr.Publish(PhaseScanning, "tick", 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full listener")
	}
}

func TestUnsubscribe(t *testing.T) {
	pr := NewProgressReporter()
	ch := pr.Subscribe()
	pr.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
}

func TestFormat(t *testing.T) {
	got := Format(Update{Phase: PhaseScanning, Message: "Scanning", Fraction: 0.25})
	if !strings.Contains(got, "25%") {
		t.Errorf("Format() = %q", got)
	}

	got = Format(Update{Phase: PhaseComplete, Message: "Done", Elapsed: 90 * time.Second})
	if got != "Done in 1m30s" {
		t.Errorf("Format() = %q", got)
	}
}
