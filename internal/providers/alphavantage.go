package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"

	"github.com/hashicorp/go-retryablehttp"
)

const alphaVantageConfidence = 0.8

// AlphaVantage is the secondary price source and the primary fundamentals
// source. Free-tier rate limits are harsh, so it sits behind Tiingo in the
// price chains and relies on the resolver's per-provider rate limiter.
type AlphaVantage struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
}

func NewAlphaVantage(baseURL, apiKey string, timeout time.Duration) *AlphaVantage {
	return &AlphaVantage{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newRetryClient(timeout),
	}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

func (a *AlphaVantage) Fetch(ctx context.Context, subject string, class repository.DataClass) (models.Datum, float64, error) {
	switch class {
	case repository.ClassPriceIntraday, repository.ClassPriceDaily:
		return a.fetchQuote(ctx, subject)
	case repository.ClassFundamentals:
		return a.fetchOverview(ctx, subject)
	default:
		return models.Datum{}, 0, ErrUnsupportedClass
	}
}

type avQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
}

func (a *AlphaVantage) fetchQuote(ctx context.Context, subject string) (models.Datum, float64, error) {
	u := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		a.baseURL, url.QueryEscape(subject), url.QueryEscape(a.apiKey))

	var resp avQuoteResponse
	if err := getJSON(ctx, a.client, u, nil, &resp); err != nil {
		return models.Datum{}, 0, fmt.Errorf("alphavantage quote %s: %w", subject, err)
	}
	if resp.Note != "" {
		// rate limit notices come back as HTTP 200
		return models.Datum{}, 0, fmt.Errorf("alphavantage quote %s: throttled", subject)
	}

	price := avFloat(resp.GlobalQuote, "05. price")
	if price == 0 {
		return models.Datum{}, 0, fmt.Errorf("alphavantage quote %s: no price", subject)
	}
	return models.Datum{
		Price:  price,
		Volume: avFloat(resp.GlobalQuote, "06. volume"),
		AsOf:   time.Now(),
	}, alphaVantageConfidence, nil
}

func (a *AlphaVantage) fetchOverview(ctx context.Context, subject string) (models.Datum, float64, error) {
	u := fmt.Sprintf("%s/query?function=OVERVIEW&symbol=%s&apikey=%s",
		a.baseURL, url.QueryEscape(subject), url.QueryEscape(a.apiKey))

	var raw map[string]string
	if err := getJSON(ctx, a.client, u, nil, &raw); err != nil {
		return models.Datum{}, 0, fmt.Errorf("alphavantage overview %s: %w", subject, err)
	}
	if len(raw) == 0 || raw["Symbol"] == "" {
		return models.Datum{}, 0, fmt.Errorf("alphavantage overview %s: empty response", subject)
	}

	fields := map[string]float64{}
	for name, key := range map[string]string{
		"pe_ratio":          "PERatio",
		"peg_ratio":         "PEGRatio",
		"eps":               "EPS",
		"profit_margin":     "ProfitMargin",
		"beta":              "Beta",
		"market_cap":        "MarketCapitalization",
		"dividend_yield":    "DividendYield",
		"revenue_per_share": "RevenuePerShareTTM",
	} {
		if v, err := strconv.ParseFloat(raw[key], 64); err == nil {
			fields[name] = v
		}
	}
	if len(fields) == 0 {
		return models.Datum{}, 0, fmt.Errorf("alphavantage overview %s: no numeric fields", subject)
	}
	return models.Datum{Fields: fields, AsOf: time.Now()}, alphaVantageConfidence, nil
}

func avFloat(m map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(m[key], 64)
	if err != nil {
		return 0
	}
	return v
}
