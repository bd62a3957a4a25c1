package resilience

import (
	"time"
)

// FromSchedule builds a provider RetryConfig from a millisecond delay list.
// An empty list falls back to ProviderSchedule.
func FromSchedule(service, operation string, delaysMs []int) RetryConfig {
	cfg := ProviderRetryConfig(service, operation)
	if len(delaysMs) == 0 {
		return cfg
	}
	sched := make([]time.Duration, 0, len(delaysMs))
	for _, ms := range delaysMs {
		if ms < 0 {
			ms = 0
		}
		sched = append(sched, time.Duration(ms)*time.Millisecond)
	}
	cfg.Schedule = sched
	cfg.MaxAttempts = len(sched) + 1
	return cfg
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(name string, failureThreshold, cooldownSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig(name)
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}
