package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrAnalysisUnavailable means the vision service could not analyze the
// submitted photos.
var ErrAnalysisUnavailable = errors.New("photo analysis unavailable")

// Analysis is the detector's verdict on a set of photos.
type Analysis struct {
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
}

// Client handles communication with the vision analysis service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new vision service client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Analyze submits photo references for condition-tag detection.
func (c *Client) Analyze(ctx context.Context, photoRefs []string) (*Analysis, error) {
	request := struct {
		PhotoRefs []string `json:"photo_refs"`
	}{
		PhotoRefs: photoRefs,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/analyze", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, ErrAnalysisUnavailable
		}
		return nil, fmt.Errorf("vision service returned status %d", resp.StatusCode)
	}

	var analysis Analysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, err
	}

	return &analysis, nil
}
