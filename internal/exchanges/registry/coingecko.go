package registry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/quantpulse/opportune/internal/httpx"
)

const coinGeckoExchangesURL = "https://api.coingecko.com/api/v3/exchanges?per_page=100"

// CoinGeckoSource feeds the discoverer from the public CoinGecko exchange
// listing. It is metadata only: trust scores and reported volume, never
// order-book or price data.
type CoinGeckoSource struct {
	client *httpx.Client
	url    string
}

func NewCoinGeckoSource(client *httpx.Client) *CoinGeckoSource {
	return &CoinGeckoSource{client: client, url: coinGeckoExchangesURL}
}

type coinGeckoExchange struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	TrustScore   int     `json:"trust_score"`
	Volume24hBTC float64 `json:"trade_volume_24h_btc"`
}

func (s *CoinGeckoSource) DiscoverExchanges(ctx context.Context) ([]DiscoveredExchange, error) {
	var listing []coinGeckoExchange
	status, err := s.client.GetJSON(ctx, s.url, &listing)
	if err != nil {
		return nil, fmt.Errorf("coingecko exchanges: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("coingecko exchanges: status %d", status)
	}

	out := make([]DiscoveredExchange, 0, len(listing))
	for _, e := range listing {
		if e.ID == "" {
			continue
		}
		out = append(out, DiscoveredExchange{
			ID:           e.ID,
			Name:         e.Name,
			TrustScore:   float64(e.TrustScore),
			HasSpot:      true,
			Volume24hBTC: e.Volume24hBTC,
		})
	}
	return out, nil
}
