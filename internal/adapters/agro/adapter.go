// Package agro reads soil conditions from the AgroMonitoring soil endpoint.
package agro

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"farm-copilot/internal/adapters/geo"
	commonhttp "farm-copilot/internal/common/http"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/models"
)

const (
	Name     = "agro"
	SourceID = "agromonitoring"

	kelvinOffset = 273.15
)

type Locator interface {
	Lookup(ctx context.Context, location string) (geo.Coordinates, error)
}

type Adapter struct {
	client  *commonhttp.Client
	locator Locator
	baseURL string
	apiKey  string
	logger  logger.Logger
}

func New(client *commonhttp.Client, locator Locator, baseURL, apiKey string, log logger.Logger) *Adapter {
	return &Adapter{
		client:  client,
		locator: locator,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  log.With(map[string]interface{}{"adapter": Name}),
	}
}

func (a *Adapter) Name() string { return Name }

// soilResponse temperatures are in Kelvin: t0 at the surface, t10 at 10cm.
type soilResponse struct {
	Dt       int64    `json:"dt"`
	T0       *float64 `json:"t0"`
	T10      *float64 `json:"t10"`
	Moisture *float64 `json:"moisture"`
}

func (a *Adapter) Fetch(ctx context.Context, _ string, location string) ([]models.Record, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, nil
	}
	if a.apiKey == "" {
		a.logger.Debug("agro api key not configured, skipping", nil)
		return nil, nil
	}

	coords, err := a.locator.Lookup(ctx, location)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	q.Set("appid", a.apiKey)

	var resp soilResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/soil?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("soil data for %q: %w", location, err)
	}

	reading := models.SoilReading{
		Source:   SourceID,
		Moisture: resp.Moisture,
	}
	switch {
	case resp.T0 != nil:
		reading.SoilTemperature = toCelsius(*resp.T0)
	case resp.T10 != nil:
		reading.SoilTemperature = toCelsius(*resp.T10)
	}

	if reading.Moisture == nil && reading.SoilTemperature == nil {
		return nil, nil
	}
	return []models.Record{reading}, nil
}

func toCelsius(kelvin float64) *float64 {
	c := math.Round((kelvin-kelvinOffset)*100) / 100
	return &c
}
