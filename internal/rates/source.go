package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"fintrack/internal/core"
)

// Quotes maps quote currencies to the rate for one unit of the base.
type Quotes map[core.Currency]decimal.Decimal

// Source fetches live rates for a base currency on a date.
type Source interface {
	Fetch(ctx context.Context, base core.Currency, asOf core.Date) (Quotes, error)
}

var ErrSourceNotConfigured = errors.New("exchange rate API key not configured")

// HTTPSource talks to the exchangerate-api.com v6 API.
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

const DefaultAPIURL = "https://v6.exchangerate-api.com/v6"

// NewHTTPSource builds a source limited to perSecond outbound requests.
func NewHTTPSource(baseURL, apiKey string, perSecond float64, client *http.Client) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		now:     time.Now,
	}
}

type apiResponse struct {
	Result          string                 `json:"result"`
	ErrorType       string                 `json:"error-type"`
	BaseCode        string                 `json:"base_code"`
	ConversionRates map[string]json.Number `json:"conversion_rates"`
}

// Fetch uses /latest for today and /history for past dates.
func (s *HTTPSource) Fetch(ctx context.Context, base core.Currency, asOf core.Date) (Quotes, error) {
	if s.apiKey == "" {
		return nil, ErrSourceNotConfigured
	}
	// Wait fails immediately when the reservation would outlive ctx.
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	url := fmt.Sprintf("%s/%s/latest/%s", s.baseURL, s.apiKey, base)
	if today := core.DateOf(s.now()); asOf.Before(today) {
		url = fmt.Sprintf("%s/%s/history/%s/%d/%d/%d", s.baseURL, s.apiKey, base, asOf.Year(), asOf.Month(), asOf.Day())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates for %s: %w", base, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var data apiResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("exchange rate API status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if data.Result == "error" {
		errType := data.ErrorType
		if errType == "" {
			errType = "unknown"
		}
		return nil, fmt.Errorf("exchange rate API error: %s", errType)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange rate API status %d", resp.StatusCode)
	}

	quotes := make(Quotes, len(data.ConversionRates))
	for code, n := range data.ConversionRates {
		c := core.Currency(code)
		if !c.Valid() {
			continue
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil || !d.IsPositive() {
			continue
		}
		quotes[c] = d
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no usable rates in response for %s", base)
	}
	return quotes, nil
}
