package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxBodyBytes = 1 << 20

var errNoPrice = errors.New("no price in response")

// Source prices symbols from the Yahoo chart endpoint, one request per
// symbol. It never retries; the monitor's next cycle does.
type Source struct {
	baseURL       string
	client        *http.Client
	maxConcurrent int
	logger        *zap.Logger
	now           func() time.Time
}

func NewSource(baseURL string, timeout time.Duration, maxConcurrent int, logger *zap.Logger) *Source {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Source{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: timeout},
		maxConcurrent: maxConcurrent,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Source) Name() string { return "yahoo" }

func (s *Source) Fetch(ctx context.Context, symbols []string) map[string]domain.Quote {
	quotes := make(map[string]domain.Quote, len(symbols))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.maxConcurrent)
	for _, symbol := range symbols {
		g.Go(func() error {
			quote, err := s.fetchOne(ctx, symbol)
			if err != nil {
				s.logger.Warn("yahoo price unavailable", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			mu.Lock()
			quotes[symbol] = quote
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return quotes
}

func (s *Source) fetchOne(ctx context.Context, symbol string) (domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", s.baseURL, url.PathEscape(symbol))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, err
	}
	request.Header.Set("User-Agent", "Mozilla/5.0")
	request.Header.Set("Accept", "application/json")

	start := time.Now()
	response, err := s.client.Do(request)
	if err != nil {
		return domain.Quote{}, err
	}
	defer response.Body.Close()

	s.logger.Debug(
		"yahoo request complete",
		zap.String("symbol", symbol),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return domain.Quote{}, fmt.Errorf("yahoo error: status %d", response.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(io.LimitReader(response.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return domain.Quote{}, fmt.Errorf("decode chart: %w", err)
	}
	if payload.Chart.Error != nil {
		return domain.Quote{}, fmt.Errorf("yahoo api error: %s", payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return domain.Quote{}, errNoPrice
	}

	meta := payload.Chart.Result[0].Meta
	if !meta.RegularMarketPrice.Valid || !meta.RegularMarketPrice.Decimal.IsPositive() {
		return domain.Quote{}, errNoPrice
	}

	observed := s.now().UTC()
	if meta.RegularMarketTime > 0 {
		observed = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	return domain.Quote{Symbol: symbol, Price: meta.RegularMarketPrice.Decimal, ObservedAt: observed}, nil
}
