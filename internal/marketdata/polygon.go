// Package marketdata wraps the Polygon.io REST aggregates endpoint.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"ipo-window-lab/internal/domain"
)

// ErrMissingAPIKey is returned when no Polygon API key is configured.
var ErrMissingAPIKey = errors.New("polygon api key not configured")

// Timespan is the aggregate bar size.
type Timespan string

// Supported timespans.
const (
	Minute Timespan = "minute"
	Day    Timespan = "day"
)

// AggsQuery selects an aggregate range for one symbol.
type AggsQuery struct {
	Symbol   string
	Timespan Timespan
	From     time.Time
	To       time.Time
}

// AggsFetcher returns ascending OHLCV bars for a query.
type AggsFetcher interface {
	FetchAggs(ctx context.Context, q AggsQuery) ([]domain.Bar, error)
}

// Client is a rate-limited Polygon aggregates client.
type Client struct {
	rest     *polygon.Client
	limiter  *rate.Limiter
	location *time.Location
}

// ClientOptions contains configuration for creating a Client.
type ClientOptions struct {
	APIKey            string
	RequestsPerSecond float64        // 0 = unlimited
	Location          *time.Location // location applied to bar timestamps
}

// NewClient creates a Polygon client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Client{
		rest:     polygon.New(opts.APIKey),
		limiter:  rate.NewLimiter(limit, 1),
		location: loc,
	}, nil
}

// FetchAggs lists adjusted aggregates in ascending order.
func (c *Client) FetchAggs(ctx context.Context, q AggsQuery) ([]domain.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("polygon rate limit: %w", err)
	}

	log.Debugf("fetching polygon %s aggregates for %s", q.Timespan, q.Symbol)

	params := models.ListAggsParams{
		Ticker:     q.Symbol,
		Multiplier: 1,
		Timespan:   models.Timespan(q.Timespan),
		From:       models.Millis(q.From),
		To:         models.Millis(q.To),
	}.WithOrder(models.Asc).WithAdjusted(true).WithLimit(50000)

	iter := c.rest.ListAggs(ctx, params)

	var bars []domain.Bar
	for iter.Next() {
		item := iter.Item()
		bars = append(bars, domain.Bar{
			Timestamp: time.Time(item.Timestamp).In(c.location),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("polygon list aggs %s: %w", q.Symbol, err)
	}
	return bars, nil
}

var _ AggsFetcher = (*Client)(nil)
