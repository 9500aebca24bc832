package session

import (
	"time"

	"github.com/cenkalti/backoff"
)

// DialWithRetry dials addr, retrying a failed TCP connect with a short
// exponential backoff schedule (250ms, 500ms, 1s) via cenkalti/backoff.
func DialWithRetry(addr string, identity Identity, sharedKey string, maxAttempts int) (*Client, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     250 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	var client *Client
	op := func() error {
		c, err := Dial(addr, identity, sharedKey)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	wrapped := backoff.WithMaxRetries(b, uint64(maxAttempts))
	if err := backoff.Retry(op, wrapped); err != nil {
		return nil, err
	}
	return client, nil
}
