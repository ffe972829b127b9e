// Package plantid identifies plants from a photo using the Plant.id API.
package plantid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	apperrors "farm-copilot/internal/common/errors"
	commonhttp "farm-copilot/internal/common/http"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/models"
)

const (
	Name     = "plantid"
	SourceID = "plant_id"

	maxErrorBody = 1024
)

var organs = []string{"leaf", "flower", "fruit"}

var plantDetails = []string{"common_names", "watering", "wiki_description"}

type imagePathKey struct{}

// WithImagePath attaches the photo to identify. Fetch does nothing without one.
func WithImagePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, imagePathKey{}, path)
}

// ImagePath returns the photo attached with WithImagePath.
func ImagePath(ctx context.Context) string {
	path, _ := ctx.Value(imagePathKey{}).(string)
	return path
}

type Adapter struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
	logger  logger.Logger
}

func New(client *commonhttp.Client, baseURL, apiKey string, log logger.Logger) *Adapter {
	return &Adapter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  log.With(map[string]interface{}{"adapter": Name}),
	}
}

func (a *Adapter) Name() string { return Name }

type identifyResponse struct {
	IsPlant     *bool `json:"is_plant"`
	Suggestions []struct {
		PlantName    string  `json:"plant_name"`
		Probability  float64 `json:"probability"`
		PlantDetails struct {
			CommonNames []string `json:"common_names"`
			Watering    *struct {
				Min int `json:"min"`
				Max int `json:"max"`
			} `json:"watering"`
			WikiDescription *struct {
				Value string `json:"value"`
			} `json:"wiki_description"`
		} `json:"plant_details"`
	} `json:"suggestions"`
}

func (a *Adapter) Fetch(ctx context.Context, _ string, _ string) ([]models.Record, error) {
	path := ImagePath(ctx)
	if path == "" {
		return nil, nil
	}
	if a.apiKey == "" {
		a.logger.Debug("plant.id api key not configured, skipping", nil)
		return nil, nil
	}

	body, contentType, err := buildUpload(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/identify", body)
	if err != nil {
		return nil, fmt.Errorf("build identify request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Api-Key", a.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identify plant: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &commonhttp.StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted(), Body: string(msg)}
	}

	var parsed identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode identify response: %w", err)
	}

	if parsed.IsPlant != nil && !*parsed.IsPlant {
		a.logger.Info("image does not appear to contain a plant", map[string]interface{}{"image": filepath.Base(path)})
	}
	return []models.Record{toIdentification(parsed)}, nil
}

func buildUpload(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", apperrors.NewResourceNotFoundError("image", path)
		}
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("images", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	for _, organ := range organs {
		if err := w.WriteField("organs", organ); err != nil {
			return nil, "", err
		}
	}
	for _, detail := range plantDetails {
		if err := w.WriteField("plant_details", detail); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func toIdentification(resp identifyResponse) models.PlantIdentification {
	id := models.PlantIdentification{Source: SourceID}
	for _, s := range resp.Suggestions {
		if strings.TrimSpace(s.PlantName) == "" {
			continue
		}
		c := models.PlantCandidate{
			Name:        s.PlantName,
			Probability: models.Clamp01(s.Probability),
			Details:     map[string]string{},
		}
		if len(s.PlantDetails.CommonNames) > 0 {
			c.Details["common_name"] = s.PlantDetails.CommonNames[0]
		}
		if s.PlantDetails.Watering != nil {
			if advice := wateringAdvice(s.PlantDetails.Watering.Min, s.PlantDetails.Watering.Max); advice != "" {
				c.Details["watering"] = advice
			}
		}
		if s.PlantDetails.WikiDescription != nil && s.PlantDetails.WikiDescription.Value != "" {
			c.Details["description"] = s.PlantDetails.WikiDescription.Value
		}
		id.Candidates = append(id.Candidates, c)
	}
	id.SortCandidates()
	return id
}

// wateringAdvice maps Plant.id's 1 (dry) to 3 (wet) watering scale onto text.
func wateringAdvice(lo, hi int) string {
	level := hi
	if level == 0 {
		level = lo
	}
	switch {
	case level <= 0:
		return ""
	case level == 1:
		return "Let the soil dry out between waterings"
	case level == 2:
		return "Keep the soil evenly moist"
	default:
		return "Keep the soil consistently wet"
	}
}
