package whois

import (
	"context"
	"fmt"
	"time"

	"github.com/likexian/whois"
	"go.uber.org/zap"

	"github.com/fahadwaseem8/whois-tracker/internal/model"
	"github.com/fahadwaseem8/whois-tracker/pkg/metrics"
)

// Provider fetches and normalizes WHOIS data for a single domain. Callers are
// expected to pass already-normalized domain names.
type Provider struct {
	client  *whois.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewProvider(timeout time.Duration, logger *zap.Logger) *Provider {
	return &Provider{
		client:  whois.NewClient().SetTimeout(timeout),
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch queries WHOIS for the domain and returns the parsed fields. The query
// is bounded by the configured timeout; a stalled server is a fetch failure,
// never a hang.
func (p *Provider) Fetch(ctx context.Context, domainName string) (model.FetchedWhois, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type queryResult struct {
		raw string
		err error
	}
	resCh := make(chan queryResult, 1)

	start := time.Now()
	go func() {
		raw, err := p.client.Whois(domainName)
		resCh <- queryResult{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		metrics.RecordWhoisFetch("timeout", time.Since(start))
		return model.FetchedWhois{}, fmt.Errorf("whois query for %s: %w", domainName, ctx.Err())
	case res := <-resCh:
		if res.err != nil {
			metrics.RecordWhoisFetch("error", time.Since(start))
			return model.FetchedWhois{}, fmt.Errorf("whois query for %s: %w", domainName, res.err)
		}
		metrics.RecordWhoisFetch("ok", time.Since(start))

		fetched := Parse(res.raw)
		p.logger.Debug("WHOIS fetched",
			zap.String("domain", domainName),
			zap.Bool("has_expiry", fetched.ExpiryDate != nil),
			zap.Bool("has_registrar", fetched.Registrar != nil),
			zap.Int("raw_size", len(res.raw)),
		)
		return fetched, nil
	}
}
