package pricefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manh-exchange/manh-core/pkg/errs"
)

type fakeProvider struct {
	rate    decimal.Decimal
	err     error
	fetches int
}

func (p *fakeProvider) Fetch(_ context.Context) (decimal.Decimal, error) {
	p.fetches++
	if p.err != nil {
		return decimal.Zero, p.err
	}
	return p.rate, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func TestCachedFeed_ServesCachedQuoteWithinTTL(t *testing.T) {
	provider := &fakeProvider{rate: decimal.RequireFromString("5")}
	now := time.Now()
	feed := NewCachedFeed(provider, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	q1, err := feed.Quote(ctx)
	require.NoError(t, err)
	assert.True(t, q1.Rate.Equal(decimal.RequireFromString("5")))

	now = now.Add(30 * time.Second)
	q2, err := feed.Quote(ctx)
	require.NoError(t, err)
	assert.Equal(t, q1, q2)
	assert.Equal(t, 1, provider.fetches)
}

func TestCachedFeed_RefreshesAfterTTL(t *testing.T) {
	provider := &fakeProvider{rate: decimal.RequireFromString("5")}
	now := time.Now()
	feed := NewCachedFeed(provider, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	_, err := feed.Quote(ctx)
	require.NoError(t, err)

	provider.rate = decimal.RequireFromString("6")
	now = now.Add(61 * time.Second)

	q, err := feed.Quote(ctx)
	require.NoError(t, err)
	assert.True(t, q.Rate.Equal(decimal.RequireFromString("6")))
	assert.Equal(t, 2, provider.fetches)
}

func TestCachedFeed_NeverServesStaleQuote(t *testing.T) {
	provider := &fakeProvider{rate: decimal.RequireFromString("5")}
	now := time.Now()
	feed := NewCachedFeed(provider, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	_, err := feed.Quote(ctx)
	require.NoError(t, err)

	// TTL 过后刷新失败: 整个调用失败，不退回旧价
	provider.err = errors.New("upstream down")
	now = now.Add(61 * time.Second)

	q, err := feed.Quote(ctx)
	assert.Nil(t, q)
	assert.True(t, errs.Is(err, errs.ErrPriceFeedUnavailable))
}

func TestCachedFeed_RejectsNonPositiveRate(t *testing.T) {
	provider := &fakeProvider{rate: decimal.Zero}
	feed := NewCachedFeed(provider, time.Minute, nil)

	q, err := feed.Quote(context.Background())

	assert.Nil(t, q)
	assert.True(t, errs.Is(err, errs.ErrPriceFeedUnavailable))
}

func TestManualProvider_Fetch(t *testing.T) {
	p := NewManualProvider(decimal.RequireFromString("5"))

	rate, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("5")))
	assert.Equal(t, "manual", p.Name())
}

func TestManualProvider_RejectsUnconfiguredRate(t *testing.T) {
	p := NewManualProvider(decimal.Zero)

	_, err := p.Fetch(context.Background())
	assert.Error(t, err)
}
