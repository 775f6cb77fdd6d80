package retry

import (
	"errors"
	"net"
	"net/url"
	"time"
)

// Backoff is an exponential wait schedule between attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	wait := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		wait *= b.Factor
	}
	if ceiling := float64(b.Max); wait > ceiling {
		wait = ceiling
	}
	return time.Duration(wait)
}

// Do runs fn up to attempts times, sleeping per the backoff schedule between
// failures. Only errors accepted by retryable are retried; any other error
// returns immediately. The last error is returned once attempts run out.
func Do(attempts int, backoff Backoff, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts {
			return err
		}
		time.Sleep(backoff.Delay(attempt))
	}
	return err
}

// Transient reports whether err is a connection-level failure (dial error,
// timeout) as opposed to a response the server actually produced. HTTP
// transport errors surface as *url.Error from net/http.
func Transient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
