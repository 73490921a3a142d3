package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"

	"github.com/hashicorp/go-retryablehttp"
)

const tiingoConfidence = 0.9

// Tiingo serves intraday and daily prices from the Tiingo IEX and EOD APIs.
// Primary price source: licensed feed, highest confidence in the chain.
type Tiingo struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
}

func NewTiingo(baseURL, apiKey string, timeout time.Duration) *Tiingo {
	return &Tiingo{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newRetryClient(timeout),
	}
}

func (t *Tiingo) Name() string { return "tiingo" }

type tiingoIEXQuote struct {
	Ticker    string  `json:"ticker"`
	Last      float64 `json:"last"`
	TngoLast  float64 `json:"tngoLast"`
	Volume    float64 `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

type tiingoEODBar struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (t *Tiingo) Fetch(ctx context.Context, subject string, class repository.DataClass) (models.Datum, float64, error) {
	switch class {
	case repository.ClassPriceIntraday:
		return t.fetchIEX(ctx, subject)
	case repository.ClassPriceDaily:
		return t.fetchEOD(ctx, subject)
	default:
		return models.Datum{}, 0, ErrUnsupportedClass
	}
}

func (t *Tiingo) fetchIEX(ctx context.Context, subject string) (models.Datum, float64, error) {
	u := fmt.Sprintf("%s/iex/?tickers=%s&token=%s",
		t.baseURL, url.QueryEscape(subject), url.QueryEscape(t.apiKey))

	var quotes []tiingoIEXQuote
	if err := getJSON(ctx, t.client, u, nil, &quotes); err != nil {
		return models.Datum{}, 0, fmt.Errorf("tiingo iex %s: %w", subject, err)
	}
	if len(quotes) == 0 {
		return models.Datum{}, 0, fmt.Errorf("tiingo iex %s: empty response", subject)
	}

	q := quotes[0]
	price := q.TngoLast
	if price == 0 {
		price = q.Last
	}
	asOf, err := time.Parse(time.RFC3339, q.Timestamp)
	if err != nil {
		asOf = time.Now()
	}
	return models.Datum{Price: price, Volume: q.Volume, AsOf: asOf}, tiingoConfidence, nil
}

func (t *Tiingo) fetchEOD(ctx context.Context, subject string) (models.Datum, float64, error) {
	u := fmt.Sprintf("%s/tiingo/daily/%s/prices?token=%s",
		t.baseURL, url.PathEscape(subject), url.QueryEscape(t.apiKey))

	var bars []tiingoEODBar
	if err := getJSON(ctx, t.client, u, nil, &bars); err != nil {
		return models.Datum{}, 0, fmt.Errorf("tiingo eod %s: %w", subject, err)
	}
	if len(bars) == 0 {
		return models.Datum{}, 0, fmt.Errorf("tiingo eod %s: empty response", subject)
	}

	bar := bars[len(bars)-1]
	asOf, err := time.Parse("2006-01-02T15:04:05Z07:00", bar.Date)
	if err != nil {
		asOf = time.Now()
	}
	return models.Datum{Price: bar.Close, Volume: bar.Volume, AsOf: asOf}, tiingoConfidence, nil
}
