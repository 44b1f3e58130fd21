package ratesource

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/go-resty/resty/v2"
	"github.com/vitos/loop_scanner/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPSource polls a JSON endpoint. Responses are cached for cacheTTL so
// that a scan and the web API hitting the same feed share one request.
type HTTPSource struct {
	name   string
	url    string
	client *resty.Client
	cache  gcache.Cache // nil when caching is off
	sf     singleflight.Group
	logger *zap.Logger
}

func NewHTTPSource(name, url string, timeout, cacheTTL time.Duration, logger *zap.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	s := &HTTPSource{
		name: name,
		url:  url,
		client: resty.New().
			SetHeader("Accept", "application/json").
			SetTimeout(timeout),
		logger: logger,
	}
	if cacheTTL > 0 {
		s.cache = gcache.New(16).LRU().Expiration(cacheTTL).Build()
	}
	return s
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) FetchRates(ctx context.Context) ([]domain.RateEntry, error) {
	if s.cache != nil {
		if v, err := s.cache.Get(s.url); err == nil {
			if rates, ok := v.([]domain.RateEntry); ok {
				s.logger.Debug("Rates served from cache", zap.String("source", s.name))
				return append([]domain.RateEntry(nil), rates...), nil
			}
		}
	}

	// the shared request must outlive any single caller; the client timeout bounds it
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(s.url, func() (interface{}, error) {
		rates, err := s.fetch(shared)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(s.url, rates); err != nil {
				s.logger.Warn("Failed to cache rates", zap.String("source", s.name), zap.Error(err))
			}
		}
		return rates, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]domain.RateEntry(nil), res.Val.([]domain.RateEntry)...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *HTTPSource) fetch(ctx context.Context) ([]domain.RateEntry, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", s.url, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), s.url)
	}

	rates, err := decodeRates(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.url, err)
	}
	return rates, nil
}
