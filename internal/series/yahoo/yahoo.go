// Package yahoo fetches daily futures settlements from the Yahoo Finance
// chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/newthinker/enercast/internal/core"
)

const (
	baseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
)

// DefaultSymbols maps commodities to front-month futures tickers.
var DefaultSymbols = map[core.Commodity]string{
	core.CommodityBrent:      "BZ=F",
	core.CommodityWTI:        "CL=F",
	core.CommodityNaturalGas: "NG=F",
}

// validSymbol matches futures and spot tickers like CL=F, BZ=F, RB=F, TTF=F
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9^.]{1,12}(=[A-Za-z])?$`)

func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo implements series.Provider over the chart endpoint
type Yahoo struct {
	client  *http.Client
	baseURL string
	symbols map[core.Commodity]string
}

// New creates a provider. symbols extends or overrides DefaultSymbols.
func New(symbols map[string]string) *Yahoo {
	m := make(map[core.Commodity]string, len(DefaultSymbols)+len(symbols))
	for c, s := range DefaultSymbols {
		m[c] = s
	}
	for c, s := range symbols {
		m[core.Commodity(c)] = s
	}
	return &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		symbols: m,
	}
}

// Symbol returns the ticker used for commodity
func (y *Yahoo) Symbol(commodity core.Commodity) (string, error) {
	s, ok := y.symbols[commodity]
	if !ok {
		return "", core.WrapError(core.ErrNoData, fmt.Errorf("no yahoo symbol for commodity %q", commodity))
	}
	if err := validateSymbol(s); err != nil {
		return "", core.WrapError(core.ErrConfigInvalid, err)
	}
	return s, nil
}

// FetchSeries returns daily closes between from and to. A zero from reaches
// back to the start of the ticker's history, a zero to means now.
func (y *Yahoo) FetchSeries(ctx context.Context, commodity core.Commodity, from, to time.Time) ([]core.PricePoint, error) {
	symbol, err := y.Symbol(commodity)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now()
	}

	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprint(from.Unix()))
	q.Set("period2", fmt.Sprint(to.Unix()))
	if from.IsZero() {
		q.Set("period1", "0")
	}
	endpoint := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	return toPoints(result.Chart.Result[0]), nil
}

// toPoints keeps bars with a close, in timestamp order, dropping duplicates
// the chart API emits for the current session.
func toPoints(r chartResult) []core.PricePoint {
	quotes := r.Indicators.Quote[0]
	points := make([]core.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(quotes.Close) || quotes.Close[i] == nil || *quotes.Close[i] <= 0 {
			continue // Skip missing data
		}
		t := time.Unix(ts, 0).UTC()
		if n := len(points); n > 0 && !t.After(points[n-1].Time) {
			continue
		}
		p := core.PricePoint{Time: t, Price: *quotes.Close[i]}
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			v := float64(*quotes.Volume[i])
			p.Volume = &v
		}
		points = append(points, p)
	}
	return points
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
