package resilience

import "time"

// FromSettings builds a RetryConfig from flat configuration values. Zero or
// negative values keep the defaults.
func FromSettings(maxAttempts, baseDelayMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if baseDelayMs > 0 {
		cfg.InitialBackoff = time.Duration(baseDelayMs) * time.Millisecond
	}
	return cfg
}
