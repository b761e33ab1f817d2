package integration

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rs/zerolog"
)

// MathOCRClient talks to the math OCR sidecar: page layout segmentation and formula-to-LaTeX.
type MathOCRClient interface {
	Segment(ctx context.Context, image []byte) ([]models.Fragment, error)
	RecognizeFormula(ctx context.Context, image []byte) (string, error)
}

type mathOCRClient struct {
	http    jsonClient
	baseURL string
	apiKey  string
	logger  zerolog.Logger
}

type imagePayload struct {
	Image string `json:"image"`
}

type segmentResponse struct {
	Fragments []models.Fragment `json:"fragments"`
}

type formulaResponse struct {
	Latex string `json:"latex"`
}

func NewMathOCRClient(baseURL, apiKey string, timeout time.Duration, retryCount int, retryDelay time.Duration, logger zerolog.Logger) MathOCRClient {
	return &mathOCRClient{
		http:    newJSONClient("math-ocr", timeout, retryCount, retryDelay, logger),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (c *mathOCRClient) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

func (c *mathOCRClient) Segment(ctx context.Context, image []byte) ([]models.Fragment, error) {
	var resp segmentResponse
	payload := imagePayload{Image: base64.StdEncoding.EncodeToString(image)}
	if err := c.http.postJSON(ctx, c.baseURL+"/segment", c.headers(), payload, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug().Int("fragments", len(resp.Fragments)).Msg("Page segmented")
	return resp.Fragments, nil
}

func (c *mathOCRClient) RecognizeFormula(ctx context.Context, image []byte) (string, error) {
	var resp formulaResponse
	payload := imagePayload{Image: base64.StdEncoding.EncodeToString(image)}
	if err := c.http.postJSON(ctx, c.baseURL+"/formula", c.headers(), payload, &resp); err != nil {
		return "", err
	}
	return resp.Latex, nil
}
