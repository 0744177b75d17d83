//go:build !integration

package redis

import "testing"

func TestRateLimiterKeys(t *testing.T) {
	if got := commandKey(42, "/share"); got != "rate_limit:42:cmd:/share" {
		t.Errorf("commandKey = %q", got)
	}
	if got := callbackKey(42); got != "rate_limit:42:cb" {
		t.Errorf("callbackKey = %q", got)
	}
}

func TestRateLimiterCeilings(t *testing.T) {
	// Browsing /mysecrets burns several taps per screen, so the
	// callback allowance must not be tighter than the command one.
	if CallbackLimit < CommandLimit {
		t.Errorf("callback limit %d tighter than command limit %d", CallbackLimit, CommandLimit)
	}
}
