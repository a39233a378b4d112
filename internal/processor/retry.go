package processor

import "time"

// Direct per-user events retry synchronously inside the message-processing
// call: the partition does not advance while a retry loop runs. That
// backpressure is intentional.
const (
	maxAttempts = 5
	baseDelay   = 500 * time.Millisecond
)

// retryWithBackoff runs op up to attempts times, sleeping base<<(n-1) before
// the nth retry (500ms, 1s, 2s, 4s, ...). It returns nil on the first
// success, or the last error once attempts are exhausted.
func retryWithBackoff(attempts int, base time.Duration, sleep func(time.Duration), op func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			sleep(base << (attempt - 1))
		}
		if err := op(attempt); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
