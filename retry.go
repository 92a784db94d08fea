package stepflow

import "time"

// RetryBuilder describes how often a failing action body is called again
// before the step gives up. The runner keeps rendering the step's busy
// policy across every attempt, so a fallback view stays up until the last
// attempt settles. Pass it to a step with WithRetry.
//
//	Action("charge", FromDomain("cart"), charge, Store("receipt", "done"),
//	    WithBusy(Fallback("paying")),
//	    WithRetry(Retry(4).Backoff(50*time.Millisecond, 2, time.Second)))
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry allows up to attempts calls of the action body in total, one
// right after the other until a delay is configured. Values below 1 mean a
// single call.
func Retry(attempts int) RetryBuilder {
	return RetryBuilder{policy: RetryPolicy{MaxAttempts: max(attempts, 1)}}
}

// Backoff waits first before the second call and multiplies the wait by
// factor for every further call, never waiting longer than ceiling. A factor
// of zero or less doubles the wait; a ceiling of zero or less means no cap.
func (r RetryBuilder) Backoff(first time.Duration, factor float64, ceiling time.Duration) RetryBuilder {
	if factor <= 0 {
		factor = 2
	}
	r.policy.InitialBackoff = first
	r.policy.BackoffMultiplier = factor
	r.policy.MaxBackoff = ceiling
	return r
}

// Every waits the same d between any two calls.
func (r RetryBuilder) Every(d time.Duration) RetryBuilder {
	return r.Backoff(d, 1, 0)
}

// NoDelay drops any configured wait. The attempt count is kept.
func (r RetryBuilder) NoDelay() RetryBuilder {
	r.policy = RetryPolicy{MaxAttempts: r.policy.MaxAttempts}
	return r
}

// Schedule lists the waits the runner inserts between calls, one per retry.
func (r RetryBuilder) Schedule() []time.Duration {
	p := r.policy
	waits := make([]time.Duration, 0, p.Attempts()-1)
	for n := 1; n < p.Attempts(); n++ {
		waits = append(waits, p.Delay(n))
	}
	return waits
}

// Policy returns the api.RetryPolicy an action step carries.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}
