package catalog

import (
	"context"
	"errors"

	"github.com/gmeppo/eppo-proposals/internal/resilience"
)

// GuardedGateway wraps a Gateway with retries and a circuit breaker so a
// struggling catalog backend fails fast instead of stacking up requests.
type GuardedGateway struct {
	Next    Gateway
	Breaker *resilience.Breaker
	Retry   resilience.RetryPolicy
}

func (g GuardedGateway) call(ctx context.Context, fn func(context.Context) error) error {
	policy := g.Retry
	if policy.Retryable == nil {
		policy.Retryable = retryable
	}
	run := func(ctx context.Context) error {
		return resilience.Retry(ctx, policy, fn)
	}
	if g.Breaker == nil {
		return run(ctx)
	}
	return g.Breaker.Do(ctx, run, func(err error) bool { return errors.Is(err, ErrProductNotFound) })
}

func retryable(err error) bool {
	return !errors.Is(err, ErrProductNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// GetProduct implements Gateway.
func (g GuardedGateway) GetProduct(ctx context.Context, id string) (Product, error) {
	var out Product
	err := g.call(ctx, func(ctx context.Context) error {
		p, err := g.Next.GetProduct(ctx, id)
		out = p
		return err
	})
	return out, err
}

// ListProducts implements Gateway.
func (g GuardedGateway) ListProducts(ctx context.Context, category string) ([]Product, error) {
	var out []Product
	err := g.call(ctx, func(ctx context.Context) error {
		rows, err := g.Next.ListProducts(ctx, category)
		out = rows
		return err
	})
	return out, err
}

// ListCategories implements Gateway.
func (g GuardedGateway) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := g.call(ctx, func(ctx context.Context) error {
		rows, err := g.Next.ListCategories(ctx)
		out = rows
		return err
	})
	return out, err
}
