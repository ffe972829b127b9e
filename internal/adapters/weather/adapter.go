// Package weather reports current conditions from OpenWeather.
package weather

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
	Name     = "weather"
	SourceID = "openweather"
)

// Locator resolves a place name to coordinates.
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

type currentResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Rain struct {
		OneHour *float64 `json:"1h"`
	} `json:"rain"`
}

// Fetch returns a WeatherReading plus a short evidence summary of the same
// conditions. Without a location there is nothing to look up.
func (a *Adapter) Fetch(ctx context.Context, _ string, location string) ([]models.Record, error) {
	location = strings.TrimSpace(location)
	if location == "" {
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
	q.Set("units", "metric")

	var resp currentResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/weather?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("current weather for %q: %w", location, err)
	}

	reading := models.WeatherReading{
		Source:      SourceID,
		Temperature: resp.Main.Temp,
		FeelsLike:   resp.Main.FeelsLike,
		Humidity:    resp.Main.Humidity,
		Rain1h:      resp.Rain.OneHour,
	}
	if len(resp.Weather) > 0 {
		reading.Condition = resp.Weather[0].Description
	}

	place := resp.Name
	if place == "" {
		place = location
	}
	return []models.Record{reading, summarize(place, reading)}, nil
}

func summarize(place string, r models.WeatherReading) models.EvidenceRecord {
	var parts []string
	if r.Temperature != nil {
		parts = append(parts, fmt.Sprintf("temperature %.1f°C", *r.Temperature))
	}
	if r.Humidity != nil {
		parts = append(parts, fmt.Sprintf("humidity %.0f%%", *r.Humidity))
	}
	if r.Rain1h != nil && *r.Rain1h > 0 {
		parts = append(parts, fmt.Sprintf("rain %.1f mm in the last hour", *r.Rain1h))
	}
	if r.Condition != "" {
		parts = append(parts, r.Condition)
	}

	body := "No measurements reported."
	if len(parts) > 0 {
		body = "Conditions: " + strings.Join(parts, ", ") + "."
	}

	meta := map[string]interface{}{"location": place}
	if r.Temperature != nil && !math.IsNaN(*r.Temperature) {
		meta["temperature"] = *r.Temperature
	}
	return models.EvidenceRecord{
		SourceID: SourceID,
		Kind:     "weather",
		Title:    "Current weather in " + place,
		Body:     body,
		Metadata: meta,
	}
}
