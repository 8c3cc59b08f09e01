package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const defaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/simple/price"

// CoinGeckoProvider 从 CoinGecko simple/price 接口获取汇率
type CoinGeckoProvider struct {
	client     *http.Client
	endpoint   string
	assetID    string // 如 the-open-network
	vsCurrency string // 如 ils
}

// NewCoinGeckoProvider 创建 CoinGecko 汇率来源
// endpoint 为空时使用官方地址
func NewCoinGeckoProvider(endpoint, assetID, vsCurrency string) *CoinGeckoProvider {
	if endpoint == "" {
		endpoint = defaultCoinGeckoEndpoint
	}
	return &CoinGeckoProvider{
		client:     &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
		assetID:    assetID,
		vsCurrency: vsCurrency,
	}
}

func (p *CoinGeckoProvider) Fetch(ctx context.Context) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s?ids=%s&vs_currencies=%s", p.endpoint, p.assetID, p.vsCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("coingecko status %d", resp.StatusCode)
	}

	// 响应形如 {"the-open-network": {"ils": 12.34}}
	var body map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("coingecko decode: %w", err)
	}

	raw, ok := body[p.assetID][p.vsCurrency]
	if !ok {
		return decimal.Zero, fmt.Errorf("coingecko response missing %s/%s", p.assetID, p.vsCurrency)
	}

	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko rate parse: %w", err)
	}
	return rate, nil
}

func (p *CoinGeckoProvider) Name() string { return "coingecko" }
