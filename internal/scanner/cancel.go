package scanner

import "sync/atomic"

// Token is a cooperative cancellation flag shared by the controller, the
// walker and every fan-out goroutine. Once set it stays set.
type Token struct {
	cancelled atomic.Bool
}

// NewToken returns an unset token.
func NewToken() *Token {
	return &Token{}
}

// Cancel sets the token. Safe to call from any goroutine, any number of times.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}
