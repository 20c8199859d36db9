package generation

import (
	"errors"
	"testing"
	"time"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
)

func noJitter(d time.Duration) time.Duration { return d }

func TestRetryPolicyRetriesTransientUpToMax(t *testing.T) {
	p := NewRetryPolicy(3, 100*time.Millisecond, time.Second)
	p.Jitter = noJitter
	transient := llm.Wrap(llm.KindOverloaded, "backend busy", nil)

	retry, backoff := p.ShouldRetry(1, transient)
	if !retry {
		t.Fatalf("attempt 1 should retry")
	}
	if backoff != 100*time.Millisecond {
		t.Fatalf("attempt 1 backoff = %v, want 100ms", backoff)
	}

	retry, backoff = p.ShouldRetry(2, transient)
	if !retry {
		t.Fatalf("attempt 2 should retry")
	}
	if backoff != 200*time.Millisecond {
		t.Fatalf("attempt 2 backoff = %v, want 200ms", backoff)
	}

	if retry, _ = p.ShouldRetry(3, transient); retry {
		t.Fatalf("attempt 3 should not retry with MaxAttempts=3")
	}
}

func TestRetryPolicyNeverRetriesPermanent(t *testing.T) {
	p := NewRetryPolicy(3, 100*time.Millisecond, time.Second)

	for _, kind := range []llm.ErrorKind{llm.KindInvalidPayload, llm.KindAuth} {
		if retry, _ := p.ShouldRetry(1, llm.Wrap(kind, "nope", nil)); retry {
			t.Fatalf("kind %s should not retry", kind)
		}
	}
	if retry, _ := p.ShouldRetry(1, errors.New("something unclassified")); retry {
		t.Fatalf("unknown errors should not retry")
	}
	if retry, _ := p.ShouldRetry(1, nil); retry {
		t.Fatalf("nil error should not retry")
	}
}

func TestRetryPolicyBackoffCapped(t *testing.T) {
	p := NewRetryPolicy(10, time.Second, 3*time.Second)
	p.Jitter = noJitter
	transient := llm.Wrap(llm.KindRateLimited, "slow down", nil)

	_, backoff := p.ShouldRetry(8, transient)
	if backoff != 3*time.Second {
		t.Fatalf("backoff = %v, want cap 3s", backoff)
	}
}

func TestRetryPolicyDefaultJitterStaysNearBackoff(t *testing.T) {
	p := NewRetryPolicy(5, time.Second, 10*time.Second)
	transient := llm.Wrap(llm.KindTimeout, "timeout", nil)

	for i := 0; i < 50; i++ {
		_, backoff := p.ShouldRetry(1, transient)
		if backoff < 750*time.Millisecond || backoff > 1250*time.Millisecond {
			t.Fatalf("jittered backoff %v outside ±25%% of 1s", backoff)
		}
	}
}

func TestRetryPolicyZeroValueUsesDefaults(t *testing.T) {
	var p RetryPolicy
	transient := llm.Wrap(llm.KindOverloaded, "busy", nil)

	if retry, _ := p.ShouldRetry(1, transient); !retry {
		t.Fatalf("zero-value policy should still retry transient errors")
	}
	if retry, _ := p.ShouldRetry(defaultMaxAttempts, transient); retry {
		t.Fatalf("zero-value policy should stop at the default max")
	}
}
