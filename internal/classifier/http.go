package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HTTPClient talks to an external sentiment analysis service.
type HTTPClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ Classifier = (*HTTPClient)(nil)

// NewHTTPClient creates a reusable HTTP client.
func NewHTTPClient(endpoint, apiKey string) *HTTPClient {
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type analyzeRequest struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

type analyzeResponse struct {
	RequestID    string   `json:"request_id"`
	Sentiment    string   `json:"sentiment"`
	Confidence   float64  `json:"confidence"`
	Score        float64  `json:"score"`
	Keywords     []string `json:"keywords"`
	ModelVersion string   `json:"model_version"`
	LatencyMS    float64  `json:"latency_ms"`
	Error        string   `json:"error"`
}

// Classify posts content to /analyze. Every failure, transport or
// service-reported, is a ClassificationError.
func (c *HTTPClient) Classify(ctx context.Context, content string) (Result, error) {
	payload := analyzeRequest{RequestID: uuid.NewString(), Text: content}

	var resp analyzeResponse
	if err := c.post(ctx, "/analyze", payload, &resp); err != nil {
		return Result{}, &ClassificationError{Message: err.Error()}
	}
	if resp.Error != "" {
		return Result{}, &ClassificationError{Message: resp.Error}
	}

	res := Result{
		Sentiment:  strings.ToUpper(resp.Sentiment),
		Confidence: resp.Confidence,
		KeyPhrases: resp.Keywords,
	}
	if err := Validate(res); err != nil {
		return Result{}, err
	}

	logrus.WithFields(logrus.Fields{
		"request_id":    payload.RequestID,
		"model_version": resp.ModelVersion,
		"latency_ms":    resp.LatencyMS,
	}).Debug("Classification completed")
	return res, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
