package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerMailer stops calling the provider after repeated failures and fails
// fast until the open timeout passes. It never retries.
type BreakerMailer struct {
	next Mailer
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerMailer(next Mailer, maxFailures int, openTimeout time.Duration, log *slog.Logger) *BreakerMailer {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "email",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerMailer{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (b *BreakerMailer) Send(ctx context.Context, template Template, params Params) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, template, params)
	})
	return err
}

func (b *BreakerMailer) State() gobreaker.State {
	return b.cb.State()
}
