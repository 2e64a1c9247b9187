// Package scoring calls the external AI project-scoring service.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
)

const maxResponseBytes = 1 << 20

// Client implements ports.Scorer. The service takes the analysis text as
// text/plain and answers {"final_score": 0-100, "score_breakdown": {...}}.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewClient creates a scoring client. timeout bounds each request.
func NewClient(url, token string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ ports.Scorer = (*Client)(nil)

type scoreResponse struct {
	FinalScore     *float64        `json:"final_score"`
	ScoreBreakdown json.RawMessage `json:"score_breakdown"`
	Error          string          `json:"error"`
}

// Score posts text and returns a COMPLETED result. Transport and protocol
// failures are returned as errors; the caller records them as FAILED.
func (c *Client) Score(ctx context.Context, text string) (*domain.ScreeningResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(text))
	if err != nil {
		return nil, fmt.Errorf("build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call scoring service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read scoring response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scoring service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed scoreResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode scoring response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("scoring service: %s", parsed.Error)
	}
	if parsed.FinalScore == nil {
		return nil, fmt.Errorf("scoring response has no final_score")
	}

	score := clampScore(*parsed.FinalScore)
	result := &domain.ScreeningResult{
		Status: domain.ScreeningStatusCompleted,
		Score:  &score,
	}
	if len(parsed.ScoreBreakdown) > 0 && string(parsed.ScoreBreakdown) != "null" {
		result.Breakdown = parsed.ScoreBreakdown
	}
	return result, nil
}

func clampScore(v float64) int {
	s := int(math.Round(v))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
