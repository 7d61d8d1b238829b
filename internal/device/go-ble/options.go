package goble

import "time"

const (
	// DefaultNotificationBuffer is the default capacity of a per-subscription delivery ring
	DefaultNotificationBuffer = 128

	// DefaultReconnectBaseDelay is the delay before the second reconnect attempt
	DefaultReconnectBaseDelay = time.Second

	// DefaultReconnectMaxBackoff caps the delay between reconnect attempts
	DefaultReconnectMaxBackoff = 30 * time.Second
)

// Options tunes the go-ble peripheral behaviour
type Options struct {
	ReconnectBaseDelay  time.Duration
	ReconnectMaxBackoff time.Duration
	NotificationBuffer  int
}

// DefaultOptions returns Options populated with package defaults
func DefaultOptions() Options {
	return Options{
		ReconnectBaseDelay:  DefaultReconnectBaseDelay,
		ReconnectMaxBackoff: DefaultReconnectMaxBackoff,
		NotificationBuffer:  DefaultNotificationBuffer,
	}
}

func (o Options) withDefaults() Options {
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if o.ReconnectMaxBackoff <= 0 {
		o.ReconnectMaxBackoff = DefaultReconnectMaxBackoff
	}
	if o.NotificationBuffer <= 0 {
		o.NotificationBuffer = DefaultNotificationBuffer
	}
	return o
}

// backoffDelay returns base * 2^attempt capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 30 {
		return max
	}
	d := base << uint(attempt)
	if d <= 0 || d > max {
		return max
	}
	return d
}
