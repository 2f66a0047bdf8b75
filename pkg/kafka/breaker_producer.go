package kafka

import (
	"context"

	"github.com/sakashimaa/shoe-shop/pkg/utils"
	"github.com/sony/gobreaker"
)

type breakerProducer struct {
	next Producer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerProducer stops hammering an unavailable broker: once the breaker
// opens, ProduceMessage fails fast with gobreaker.ErrOpenState.
func NewBreakerProducer(next Producer, cb *gobreaker.CircuitBreaker) Producer {
	return &breakerProducer{next: next, cb: cb}
}

func (p *breakerProducer) ProduceMessage(ctx context.Context, topic, key string, message any) error {
	_, err := utils.ExecuteWithBreaker(p.cb, func() (struct{}, error) {
		return struct{}{}, p.next.ProduceMessage(ctx, topic, key, message)
	})

	return err
}

func (p *breakerProducer) Close() error {
	return p.next.Close()
}
