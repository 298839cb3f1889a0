package rosterclient

import "time"

const (
	BaseReconnectDelay = time.Second
	MaxReconnectDelay  = 30 * time.Second
	// MaxReconnectAttempts is the number of consecutive failures after which
	// a session is abandoned.
	MaxReconnectAttempts = 10
)

// Backoff returns min(BaseReconnectDelay * 2^attempt, MaxReconnectDelay).
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := BaseReconnectDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= MaxReconnectDelay {
			return MaxReconnectDelay
		}
	}
	return d
}
