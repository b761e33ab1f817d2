package integration

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const documentTextDetection = "DOCUMENT_TEXT_DETECTION"

// VisionClient calls the Cloud Vision images:annotate REST endpoint.
type VisionClient interface {
	DetectDocumentText(ctx context.Context, image []byte) (string, error)
}

type visionClient struct {
	http     jsonClient
	endpoint string
	apiKey   string
	logger   zerolog.Logger
}

type visionRequest struct {
	Requests []visionImageRequest `json:"requests"`
}

type visionImageRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type visionResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

func NewVisionClient(endpoint, apiKey string, timeout time.Duration, retryCount int, retryDelay time.Duration, logger zerolog.Logger) VisionClient {
	return &visionClient{
		http:     newJSONClient("vision", timeout, retryCount, retryDelay, logger),
		endpoint: endpoint,
		apiKey:   apiKey,
		logger:   logger,
	}
}

func (c *visionClient) DetectDocumentText(ctx context.Context, image []byte) (string, error) {
	payload := visionRequest{
		Requests: []visionImageRequest{{
			Image:    visionImage{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []visionFeature{{Type: documentTextDetection}},
		}},
	}

	target := c.endpoint
	if c.apiKey != "" {
		target += "?key=" + url.QueryEscape(c.apiKey)
	}

	var resp visionResponse
	if err := c.http.postJSON(ctx, target, nil, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("vision returned no responses")
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("vision error %d: %s", r.Error.Code, r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		// пустая страница
		return "", nil
	}

	c.logger.Debug().Int("chars", len(r.FullTextAnnotation.Text)).Msg("Document text detected")
	return r.FullTextAnnotation.Text, nil
}
