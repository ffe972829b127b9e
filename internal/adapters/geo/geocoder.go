// Package geo resolves place names to coordinates through the OpenWeather
// geocoding API. Results are cached and concurrent lookups of the same place
// share a single upstream call.
package geo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"farm-copilot/internal/common/cache"
	commonhttp "farm-copilot/internal/common/http"
	"farm-copilot/internal/common/logger"
)

const keyPrefix = "geocode:"

// DefaultTTL keeps resolved coordinates far longer than weather data; places do not move.
const DefaultTTL = 24 * time.Hour

// DefaultResolveTimeout bounds one shared upstream lookup.
const DefaultResolveTimeout = 10 * time.Second

type Coordinates struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Name    string  `json:"name,omitempty"`
	Country string  `json:"country,omitempty"`
}

// ErrNotFound is returned when the geocoder knows no place by the given name.
type ErrNotFound struct {
	Location string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("no coordinates found for %q", e.Location)
}

type Geocoder struct {
	client         *commonhttp.Client
	baseURL        string
	apiKey         string
	cache          cache.Cache
	ttl            time.Duration
	resolveTimeout time.Duration
	group          singleflight.Group
	logger         logger.Logger
}

type Option func(*Geocoder)

// WithResolveTimeout caps how long a shared lookup may run once started,
// including after every caller waiting on it has gone away.
func WithResolveTimeout(d time.Duration) Option {
	return func(g *Geocoder) {
		if d > 0 {
			g.resolveTimeout = d
		}
	}
}

func NewGeocoder(client *commonhttp.Client, baseURL, apiKey string, c cache.Cache, log logger.Logger, opts ...Option) *Geocoder {
	g := &Geocoder{
		client:         client,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		cache:          c,
		ttl:            DefaultTTL,
		resolveTimeout: DefaultResolveTimeout,
		logger:         log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CacheKey is the cache key under which the coordinates for location live.
func CacheKey(location string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(location))
}

// Lookup returns the coordinates of location.
func (g *Geocoder) Lookup(ctx context.Context, location string) (Coordinates, error) {
	key := CacheKey(location)

	var coords Coordinates
	if g.cache != nil && cache.GetJSON(ctx, g.cache, key, &coords) {
		return coords, nil
	}

	// The shared call outlives any single caller, but never its resolve timeout.
	ch := g.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.resolveTimeout)
		defer cancel()
		return g.resolve(shared, location, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Coordinates{}, res.Err
		}
		return res.Val.(Coordinates), nil
	case <-ctx.Done():
		return Coordinates{}, ctx.Err()
	}
}

func (g *Geocoder) resolve(ctx context.Context, location, key string) (Coordinates, error) {
	q := url.Values{}
	q.Set("q", strings.TrimSpace(location))
	q.Set("limit", "1")
	q.Set("appid", g.apiKey)

	var places []Coordinates
	if err := g.client.GetJSON(ctx, g.baseURL+"/direct?"+q.Encode(), nil, &places); err != nil {
		return Coordinates{}, fmt.Errorf("geocode %q: %w", location, err)
	}
	if len(places) == 0 {
		return Coordinates{}, &ErrNotFound{Location: location}
	}

	coords := places[0]
	if g.cache != nil {
		if err := cache.SetJSON(ctx, g.cache, key, coords, g.ttl); err != nil {
			g.logger.Warn("failed to cache coordinates", map[string]interface{}{
				"location": location,
				"error":    err.Error(),
			})
		}
	}
	return coords, nil
}
