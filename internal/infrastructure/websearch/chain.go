package websearch

import (
	"context"
	"log/slog"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/resilience"
)

// Provider is a single web search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error)
}

// Chain tries providers in order and returns the first non-empty result
// set. A provider failure is logged and the next provider takes over;
// when every provider fails the chain degrades to an empty result
// instead of surfacing an error, because answers must still be produced
// from whatever local evidence exists.
type Chain struct {
	providers []Provider
	executor  *resilience.Executor
	logger    *slog.Logger
	observe   func(provider, result string)
}

func NewChain(logger *slog.Logger, executor *resilience.Executor, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		executor:  executor,
		logger:    logger,
	}
}

// SetObserver registers a callback invoked per provider attempt with
// result "ok", "empty" or "error".
func (c *Chain) SetObserver(observe func(provider, result string)) {
	c.observe = observe
}

func (c *Chain) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	if maxResults <= 0 {
		return []domain.WebResult{}, nil
	}

	for _, provider := range c.providers {
		results, err := c.searchOne(ctx, provider, query, maxResults)
		if err != nil {
			c.record(provider.Name(), "error")
			c.logger.Warn("web_search_provider_failed",
				"provider", provider.Name(),
				"error", err,
			)
			continue
		}
		if len(results) == 0 {
			c.record(provider.Name(), "empty")
			continue
		}
		c.record(provider.Name(), "ok")
		return results, nil
	}

	c.logger.Warn("web_search_exhausted", "providers", len(c.providers))
	return []domain.WebResult{}, nil
}

func (c *Chain) searchOne(ctx context.Context, provider Provider, query string, maxResults int) ([]domain.WebResult, error) {
	var results []domain.WebResult
	call := func(ctx context.Context) error {
		var err error
		results, err = provider.Search(ctx, query, maxResults)
		return err
	}

	if c.executor == nil {
		return results, call(ctx)
	}
	if err := c.executor.Execute(ctx, "websearch."+provider.Name(), call, classifyWebError); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Chain) record(provider, result string) {
	if c.observe != nil {
		c.observe(provider, result)
	}
}
