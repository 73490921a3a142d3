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

const yahooConfidence = 0.6

// Yahoo is the keyless last-resort price source plus the metadata source. The
// unofficial chart API needs no credentials, which makes it the natural tail
// of every price chain, at reduced confidence.
type Yahoo struct {
	baseURL string
	client  *retryablehttp.Client
}

func NewYahoo(baseURL string, timeout time.Duration) *Yahoo {
	return &Yahoo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newRetryClient(timeout),
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
				Currency           string  `json:"currency"`
				ExchangeName       string  `json:"exchangeName"`
				FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) Fetch(ctx context.Context, subject string, class repository.DataClass) (models.Datum, float64, error) {
	switch class {
	case repository.ClassPriceIntraday, repository.ClassPriceDaily, repository.ClassMetadata:
	default:
		return models.Datum{}, 0, ErrUnsupportedClass
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", y.baseURL, url.PathEscape(subject))

	var resp yahooChartResponse
	headers := map[string]string{"User-Agent": "Mozilla/5.0"}
	if err := getJSON(ctx, y.client, u, headers, &resp); err != nil {
		return models.Datum{}, 0, fmt.Errorf("yahoo chart %s: %w", subject, err)
	}
	if resp.Chart.Error != nil {
		return models.Datum{}, 0, fmt.Errorf("yahoo chart %s: %s", subject, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return models.Datum{}, 0, fmt.Errorf("yahoo chart %s: empty result", subject)
	}

	r := resp.Chart.Result[0]
	asOf := time.Now()
	if r.Meta.RegularMarketTime > 0 {
		asOf = time.Unix(r.Meta.RegularMarketTime, 0)
	}

	d := models.Datum{Price: r.Meta.RegularMarketPrice, AsOf: asOf}
	if len(r.Indicators.Quote) > 0 {
		for _, v := range r.Indicators.Quote[0].Volume {
			d.Volume += v
		}
	}
	if class == repository.ClassMetadata {
		d.Fields = map[string]float64{
			"fifty_two_week_high": r.Meta.FiftyTwoWeekHigh,
			"fifty_two_week_low":  r.Meta.FiftyTwoWeekLow,
		}
	}
	if d.Price == 0 && class != repository.ClassMetadata {
		return models.Datum{}, 0, fmt.Errorf("yahoo chart %s: no price", subject)
	}
	return d, yahooConfidence, nil
}
