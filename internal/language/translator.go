package language

import (
	"context"
	"fmt"
	"strings"

	apperrors "farm-copilot/internal/common/errors"
	commonhttp "farm-copilot/internal/common/http"
)

// HTTPTranslator talks to a LibreTranslate-compatible /translate endpoint.
type HTTPTranslator struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
}

func NewHTTPTranslator(client *commonhttp.Client, baseURL, apiKey string) *HTTPTranslator {
	return &HTTPTranslator{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == target {
		return text, nil
	}
	req := translateRequest{Q: text, Source: source, Target: target, Format: "text", APIKey: t.apiKey}

	var resp translateResponse
	if err := t.client.PostJSON(ctx, t.baseURL+"/translate", req, nil, &resp); err != nil {
		if ctx.Err() != nil {
			return "", apperrors.NewTimeoutError("translation", err)
		}
		return "", apperrors.NewExternalServiceError("translation", fmt.Errorf("%s->%s: %w", source, target, err))
	}
	return resp.TranslatedText, nil
}
