package ice

import (
	"context"

	"go.uber.org/zap"
)

// FallbackProvider tries primary first and falls back to a static descriptor
// set on error, so a transient traversal-service outage degrades admission
// to STUN-only connectivity instead of failing it outright.
type FallbackProvider struct {
	primary  Provider
	fallback Provider
	log      *zap.Logger
}

// NewFallbackProvider pairs a (possibly nil) primary with a fallback. A nil
// primary makes this equivalent to using fallback directly.
func NewFallbackProvider(primary, fallback Provider, log *zap.Logger) *FallbackProvider {
	return &FallbackProvider{primary: primary, fallback: fallback, log: log}
}

// Fetch implements Provider.
func (p *FallbackProvider) Fetch(ctx context.Context) ([]Server, error) {
	if p.primary == nil {
		return p.fallback.Fetch(ctx)
	}
	servers, err := p.primary.Fetch(ctx)
	if err == nil {
		return servers, nil
	}
	p.log.Warn("ice credential provider failed, using fallback", zap.Error(err))
	return p.fallback.Fetch(ctx)
}
