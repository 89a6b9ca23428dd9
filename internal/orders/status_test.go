package orders

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusPaid},
		{StatusPending, StatusFailed},
		{StatusPaid, StatusCompleted},
		{StatusPaid, StatusFailed},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusCompleted}, // must pass through paid
		{StatusPaid, StatusPending},      // no going back
		{StatusCompleted, StatusFailed},
		{StatusCompleted, StatusPaid},
		{StatusFailed, StatusPaid},
		{StatusFailed, StatusCompleted},
		{StatusPending, StatusPending},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s must be rejected", tc.from, tc.to)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusPaid} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
