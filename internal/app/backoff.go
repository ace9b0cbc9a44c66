package app

import (
	"context"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
)

// Default delays between poll iterations.
const (
	DefaultIdleDelay       = 3 * time.Second
	DefaultServerBackoff   = 15 * time.Minute
	DefaultResponseBackoff = time.Minute
	DefaultRequestBackoff  = time.Minute
)

// Backoff picks the delay before the next iteration from the outcome of the
// current one. Server outages recover slower than request glitches, so they
// wait longer.
type Backoff struct {
	Idle     time.Duration
	Server   time.Duration
	Response time.Duration
	Request  time.Duration
}

// DefaultBackoff returns the production delays.
func DefaultBackoff() Backoff {
	return Backoff{
		Idle:     DefaultIdleDelay,
		Server:   DefaultServerBackoff,
		Response: DefaultResponseBackoff,
		Request:  DefaultRequestBackoff,
	}
}

// Delay returns how long to wait after an iteration that ended with err.
// A nil err gets the idle delay; errors that are not transport errors get 0.
func (b Backoff) Delay(err error) time.Duration {
	if err == nil {
		return b.Idle
	}
	te, ok := domain.AsTransport(err)
	if !ok {
		return 0
	}
	switch te.Kind {
	case domain.KindServer:
		return b.Server
	case domain.KindResponse:
		return b.Response
	default:
		return b.Request
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
