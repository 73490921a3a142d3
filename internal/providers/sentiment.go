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

// SentimentService queries the in-house news-sentiment scoring service. The
// service reports its own confidence per ticker, derived from how many scored
// articles back the aggregate.
type SentimentService struct {
	baseURL string
	client  *retryablehttp.Client
}

func NewSentimentService(baseURL string, timeout time.Duration) *SentimentService {
	return &SentimentService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newRetryClient(timeout),
	}
}

func (s *SentimentService) Name() string { return "sentiment" }

type sentimentResponse struct {
	Ticker     string  `json:"ticker"`
	Score      float64 `json:"score"` // [-1, 1]
	Magnitude  float64 `json:"magnitude"`
	Articles   int     `json:"articles"`
	Confidence float64 `json:"confidence"`
	AsOf       string  `json:"as_of"`
}

func (s *SentimentService) Fetch(ctx context.Context, subject string, class repository.DataClass) (models.Datum, float64, error) {
	if class != repository.ClassSentiment {
		return models.Datum{}, 0, ErrUnsupportedClass
	}

	u := fmt.Sprintf("%s/v1/sentiment/%s", s.baseURL, url.PathEscape(subject))

	var resp sentimentResponse
	if err := getJSON(ctx, s.client, u, nil, &resp); err != nil {
		return models.Datum{}, 0, fmt.Errorf("sentiment %s: %w", subject, err)
	}
	if resp.Articles == 0 {
		return models.Datum{}, 0, fmt.Errorf("sentiment %s: no scored articles", subject)
	}

	asOf, err := time.Parse(time.RFC3339, resp.AsOf)
	if err != nil {
		asOf = time.Now()
	}
	conf := resp.Confidence
	if conf <= 0 || conf > 1 {
		conf = 0.5
	}
	return models.Datum{
		Fields: map[string]float64{
			"score":     resp.Score,
			"magnitude": resp.Magnitude,
			"articles":  float64(resp.Articles),
		},
		AsOf: asOf,
	}, conf, nil
}
