package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the Replicate predictions API. It is constructed once at the
// composition root and injected into whatever needs it.
type Client struct {
	baseURL     string
	token       string
	clientAgent string
	httpClient  *http.Client
}

func NewClient(baseURL, token, clientAgent string) *Client {
	return &Client{
		baseURL:     baseURL,
		token:       token,
		clientAgent: clientAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreatePrediction submits one generation job and returns its handle. A single
// attempt is made; every failure mode surfaces as *SubmissionError.
func (c *Client) CreatePrediction(ctx context.Context, input map[string]any) (*Prediction, error) {
	payload, err := json.Marshal(createPredictionRequest{
		Model:   SDXLModel,
		Version: SDXLModelVersion,
		Input:   input,
	})
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/predictions", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, &SubmissionError{Err: fmt.Errorf("create prediction failed (%d): %s", resp.StatusCode, body)}
	}

	var parsed Prediction
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &SubmissionError{Err: err}
	}
	if parsed.ID == "" {
		return nil, &SubmissionError{Err: errors.New("response missing prediction id")}
	}
	return &parsed, nil
}

// GetPrediction fetches the current state of a prediction. Any status value is
// a successful return; only the call failing yields a *StatusFetchError.
func (c *Client) GetPrediction(ctx context.Context, predictionID string) (*Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/predictions/%s", c.baseURL, predictionID), nil)
	if err != nil {
		return nil, &StatusFetchError{PredictionID: predictionID, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &StatusFetchError{PredictionID: predictionID, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusFetchError{PredictionID: predictionID, Err: fmt.Errorf("status request failed (%d): %s", resp.StatusCode, body)}
	}

	var parsed Prediction
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &StatusFetchError{PredictionID: predictionID, Err: err}
	}
	return &parsed, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Client-Agent", c.clientAgent)
}
