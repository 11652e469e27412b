package entitlements

import "testing"

func TestEntitled(t *testing.T) {
	for _, status := range []string{"active", "trialing", " Active "} {
		if !Entitled(status) {
			t.Fatalf("expected status %q to be entitled", status)
		}
	}
	for _, status := range []string{"past_due", "canceled", "unpaid", "incomplete", "incomplete_expired", "paused", "inactive", ""} {
		if Entitled(status) {
			t.Fatalf("expected status %q to not be entitled", status)
		}
	}
}
