package cache

import (
	"context"

	"github.com/searchforge/relevance/internal/domain/providers"
	"github.com/searchforge/relevance/pkg/breaker"
	apperrors "github.com/searchforge/relevance/pkg/errors"
)

// ProtectedAdapter wraps a CacheProvider with a circuit breaker. When the
// cache backend is failing, calls are shed fast instead of piling up on a
// dead dependency; the caller sees an unavailable error and degrades.
type ProtectedAdapter struct {
	inner providers.CacheProvider
	b     *breaker.Breaker
}

// NewProtectedAdapter wraps inner with the given breaker.
func NewProtectedAdapter(inner providers.CacheProvider, b *breaker.Breaker) providers.CacheProvider {
	return &ProtectedAdapter{
		inner: inner,
		b:     b,
	}
}

func (a *ProtectedAdapter) shedding() error {
	if !a.b.CanExecute() {
		return apperrors.NewUnavailableError("cache circuit open", breaker.ErrOpen)
	}
	return nil
}

func (a *ProtectedAdapter) observe(err error) error {
	if err != nil {
		a.b.RecordFailure()
		return err
	}
	a.b.RecordSuccess()
	return nil
}

// Get retrieves a value through the breaker. A cache miss is a healthy
// response and counts as a success.
func (a *ProtectedAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	if err := a.shedding(); err != nil {
		return nil, err
	}
	value, err := a.inner.Get(ctx, key)
	if err := a.observe(err); err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a value through the breaker
func (a *ProtectedAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	if err := a.shedding(); err != nil {
		return err
	}
	return a.observe(a.inner.Set(ctx, key, value, expirationSeconds))
}

// Delete removes a value through the breaker
func (a *ProtectedAdapter) Delete(ctx context.Context, key string) error {
	if err := a.shedding(); err != nil {
		return err
	}
	return a.observe(a.inner.Delete(ctx, key))
}

// DeletePattern removes matching keys through the breaker
func (a *ProtectedAdapter) DeletePattern(ctx context.Context, pattern string) error {
	if err := a.shedding(); err != nil {
		return err
	}
	return a.observe(a.inner.DeletePattern(ctx, pattern))
}

// Exists checks key existence through the breaker
func (a *ProtectedAdapter) Exists(ctx context.Context, key string) (bool, error) {
	if err := a.shedding(); err != nil {
		return false, err
	}
	exists, err := a.inner.Exists(ctx, key)
	if err := a.observe(err); err != nil {
		return false, err
	}
	return exists, nil
}
