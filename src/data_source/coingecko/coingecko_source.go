package coingecko

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"market-pulse/src/helpers"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

const (
	SourceName     = "coingecko"
	marketsPath    = "/coins/markets"
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
)

type CoinGeckoSource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
	now     func() time.Time
}

// marketEntry mirrors one element of /coins/markets. Pointer fields let us tell
// a missing value from a zero one.
type marketEntry struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	TotalVolume              *float64 `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	LastUpdated              string   `json:"last_updated"`
}

// -----------------------------------------------------------------------------

func NewCoinGeckoSource(cfg *models.MConfig, netMgr interfaces.INetworkManager) *CoinGeckoSource {
	return &CoinGeckoSource{
		Config:  cfg,
		Network: netMgr,
		Logger:  logger.NewLogger(cfg, "CoinGeckoSource"),
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

func (s *CoinGeckoSource) Name() string {
	return SourceName
}

// -----------------------------------------------------------------------------

// FetchMarketData issues exactly one request for the top count assets.
func (s *CoinGeckoSource) FetchMarketData(ctx context.Context, count int) (*models.MMarketSnapshot, error) {
	if count <= 0 {
		count = 5
	}

	if timeout := s.Config.Upstream.RequestTimeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := s.Network.Get(ctx, s.marketsURL(), s.queryParams(count))
	if err != nil {
		return nil, err
	}

	snapshot, err := s.parseMarkets(body, count)
	if err != nil {
		return nil, err
	}

	s.Logger.Debug("Fetched %d assets from %s", len(snapshot.Assets), SourceName)
	return snapshot, nil
}

// -----------------------------------------------------------------------------

func (s *CoinGeckoSource) marketsURL() string {
	base := strings.TrimRight(s.Config.Upstream.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + marketsPath
}

// -----------------------------------------------------------------------------

func (s *CoinGeckoSource) queryParams(count int) map[string]string {
	currency := s.Config.Upstream.Currency
	if currency == "" {
		currency = "usd"
	}
	return map[string]string{
		"vs_currency":             currency,
		"order":                   "market_cap_desc",
		"per_page":                strconv.Itoa(count),
		"page":                    "1",
		"sparkline":               "false",
		"price_change_percentage": "24h",
	}
}

// -----------------------------------------------------------------------------

// parseMarkets converts the upstream payload into a snapshot. Entries without a
// price are dropped; an empty result is an upstream error.
func (s *CoinGeckoSource) parseMarkets(body []byte, count int) (*models.MMarketSnapshot, error) {
	var entries []marketEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, helpers.NewFetchError(helpers.KindUpstreamError, 0, "malformed markets payload",
			pkgerrors.Wrap(err, "decode /coins/markets"))
	}

	fetchedAt := s.now()
	assets := make([]models.MAsset, 0, len(entries))
	for _, e := range entries {
		if e.CurrentPrice == nil {
			s.Logger.Debug("Skipping %q: no current price", e.ID)
			continue
		}
		assets = append(assets, models.MAsset{
			ID:                e.ID,
			Name:              e.Name,
			Symbol:            strings.ToUpper(e.Symbol),
			CurrentPrice:      *e.CurrentPrice,
			MarketCap:         deref(e.MarketCap),
			TotalVolume24h:    deref(e.TotalVolume),
			PriceChangePct24h: deref(e.PriceChangePercentage24h),
			LastUpdated:       parseTime(e.LastUpdated),
		})
	}

	if len(assets) == 0 {
		return nil, helpers.NewFetchError(helpers.KindUpstreamError, 0, "upstream returned no usable assets", nil)
	}

	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].MarketCap > assets[j].MarketCap
	})
	if len(assets) > count {
		assets = assets[:count]
	}

	return &models.MMarketSnapshot{
		Assets:    assets,
		FetchedAt: fetchedAt,
	}, nil
}

// -----------------------------------------------------------------------------
// Helper functions
// -----------------------------------------------------------------------------

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
