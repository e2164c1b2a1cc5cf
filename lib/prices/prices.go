// Package prices implements the fiat price client over a cryptocompare-style
// provider. Live quotes and daily history go through the cache service under
// their resource classes so a dashboard full of sessions does not multiply
// upstream calls.
package prices

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ChorusOne/anthem-sub000/lib/cache"
	"github.com/ChorusOne/anthem-sub000/lib/fetch"
	"github.com/ChorusOne/anthem-sub000/lib/network"
)

// ErrUnknownTicker reports a crypto symbol outside the supported network set.
var ErrUnknownTicker = errors.New("unknown crypto ticker")

// Quote is a live price of one crypto ticker in one fiat currency.
type Quote struct {
	Currency string  `json:"currency"`
	Versus   string  `json:"versus"`
	Price    float64 `json:"price"`
}

// DailyPrice is one day's closing price.
type DailyPrice struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// Change is a 24h price movement summary.
type Change struct {
	Price         float64 `json:"price"`
	Change24h     float64 `json:"change24h"`
	ChangePercent float64 `json:"changePercent24h"`
}

// Client queries the price provider.
type Client struct {
	host   string
	apiKey string
	fc     *fetch.Client
	cache  *cache.Service
	reg    *network.Registry
	log    *zap.Logger
}

func New(host, apiKey string, fc *fetch.Client, c *cache.Service, reg *network.Registry, log *zap.Logger) *Client {
	return &Client{
		host:   strings.TrimSuffix(host, "/"),
		apiKey: apiKey,
		fc:     fc,
		cache:  c,
		reg:    reg,
		log:    log.Named("prices"),
	}
}

// ticker validates the crypto symbol against the supported networks and
// returns its canonical upper-case form.
func (c *Client) ticker(crypto string) (string, error) {
	def, err := c.reg.ByTicker(crypto)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTicker, crypto)
	}

	return def.Ticker, nil
}

func (c *Client) query(path string, params url.Values) string {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	return c.host + path + "?" + params.Encode()
}

// Price returns the live quote for the ticker in the given fiat currency.
// Quotes are cached for the live-quote class TTL, which is short enough to
// stay current and long enough to absorb request bursts.
func (c *Client) Price(ctx context.Context, crypto, fiat string) (Quote, error) {
	sym, err := c.ticker(crypto)
	if err != nil {
		return Quote{}, err
	}

	fiat = strings.ToUpper(fiat)
	key := sym + ":" + fiat

	return cache.Fetch(ctx, c.cache, key, cache.ClassLiveQuote,
		func(ctx context.Context) (Quote, error) {
			u := c.query("/data/price", url.Values{"fsym": {sym}, "tsyms": {fiat}})

			var resp map[string]float64
			if err := c.fc.Get(ctx, u, &resp); err != nil {
				return Quote{}, fmt.Errorf("fetching %s/%s quote: %w", sym, fiat, err)
			}

			price, ok := resp[fiat]
			if !ok {
				return Quote{}, fmt.Errorf("quote response missing %s for %s", fiat, sym)
			}

			return Quote{Currency: sym, Versus: fiat, Price: price}, nil
		})
}

// FiatPriceHistory returns the daily closing prices for the network's ticker
// in the given fiat currency, oldest first. History changes once a day and is
// cached accordingly.
func (c *Client) FiatPriceHistory(ctx context.Context, fiat, networkName string) ([]DailyPrice, error) {
	def, err := c.reg.ByName(networkName)
	if err != nil {
		return nil, err
	}

	if !def.Supports(network.CapFiatPrices) {
		return nil, &network.NotSupportedError{Network: def.Name, Capability: network.CapFiatPrices}
	}

	fiat = strings.ToUpper(fiat)
	key := def.Ticker + ":" + fiat

	return cache.Fetch(ctx, c.cache, key, cache.ClassDailyPrices,
		func(ctx context.Context) ([]DailyPrice, error) {
			u := c.query("/data/v2/histoday", url.Values{
				"fsym":    {def.Ticker},
				"tsym":    {fiat},
				"allData": {"true"},
			})

			var resp struct {
				Data struct {
					Data []struct {
						Time  int64   `json:"time"`
						Close float64 `json:"close"`
					} `json:"Data"`
				} `json:"Data"`
			}
			if err := c.fc.Get(ctx, u, &resp); err != nil {
				return nil, fmt.Errorf("fetching %s/%s price history: %w", def.Ticker, fiat, err)
			}

			out := make([]DailyPrice, 0, len(resp.Data.Data))
			for _, d := range resp.Data.Data {
				out = append(out, DailyPrice{Time: d.Time, Price: d.Close})
			}

			return out, nil
		})
}

// DailyPercentChange returns the 24h price movement for the ticker.
func (c *Client) DailyPercentChange(ctx context.Context, crypto, fiat string) (Change, error) {
	sym, err := c.ticker(crypto)
	if err != nil {
		return Change{}, err
	}

	fiat = strings.ToUpper(fiat)
	key := sym + ":" + fiat + ":change"

	return cache.Fetch(ctx, c.cache, key, cache.ClassLiveQuote,
		func(ctx context.Context) (Change, error) {
			u := c.query("/data/pricemultifull", url.Values{"fsyms": {sym}, "tsyms": {fiat}})

			var resp struct {
				Raw map[string]map[string]struct {
					Price        float64 `json:"PRICE"`
					Change24h    float64 `json:"CHANGE24HOUR"`
					ChangePct24h float64 `json:"CHANGEPCT24HOUR"`
				} `json:"RAW"`
			}
			if err := c.fc.Get(ctx, u, &resp); err != nil {
				return Change{}, fmt.Errorf("fetching %s/%s daily change: %w", sym, fiat, err)
			}

			raw, ok := resp.Raw[sym][fiat]
			if !ok {
				return Change{}, fmt.Errorf("change response missing %s/%s", sym, fiat)
			}

			return Change{Price: raw.Price, Change24h: raw.Change24h, ChangePercent: raw.ChangePct24h}, nil
		})
}
