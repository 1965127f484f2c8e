// Package mlclient adapts the external ML inference service (priority,
// fake detection, categorization, semantic duplicate search) behind the
// workflow's Classifier and Detector interfaces. All calls are advisory,
// idempotent reads with bounded timeouts; a failed call is surfaced as
// unavailable, never as an empty verdict.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/internal/pkg/env"
	"github.com/civixhq/civix/internal/pkg/workflow"
)

// DefaultTimeout bounds every inference call. No automatic retries: the
// moderator retries manually, the service is safely re-callable.
const DefaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// ConfigFromEnv reads ML_SERVICE_URL and ML_TIMEOUT_SECONDS.
func ConfigFromEnv() Config {
	cfg := Config{
		BaseURL: env.GetEnv("ML_SERVICE_URL", "http://localhost:8000"),
		Timeout: DefaultTimeout,
	}
	if secs, err := strconv.Atoi(env.GetEnv("ML_TIMEOUT_SECONDS", "")); err == nil && secs > 0 {
		cfg.Timeout = time.Duration(secs) * time.Second
	}
	return cfg
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type textPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type priorityResponse struct {
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
}

type fakeResponse struct {
	IsFake         bool    `json:"is_fake"`
	FakeConfidence float64 `json:"fake_confidence"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}

type categoryResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Analyze runs the three classification endpoints concurrently and returns
// one assembled verdict. Any sub-call failing fails the whole run with
// ErrClassifierUnavailable; partial verdicts are never assembled.
func (c *Client) Analyze(ctx context.Context, title, description string) (*models.AIAnalysis, error) {
	payload := textPayload{Title: title, Description: description}

	var (
		priority priorityResponse
		fake     fakeResponse
		category categoryResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.postJSON(gctx, "/api/predict-priority/", payload, &priority) })
	g.Go(func() error { return c.postJSON(gctx, "/api/detect-fake/", payload, &fake) })
	g.Go(func() error { return c.postJSON(gctx, "/api/categorize/", payload, &category) })

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrClassifierUnavailable, err)
	}

	confidence := fake.FakeConfidence
	if confidence == 0 {
		confidence = fake.Confidence
	}

	return &models.AIAnalysis{
		Category:       category.Category,
		Priority:       priority.Priority,
		IsFake:         fake.IsFake,
		FakeConfidence: confidence,
		Reasoning:      fake.Reason,
		AnalyzedAt:     time.Now(),
	}, nil
}

type duplicateRequest struct {
	Candidate      textPayload                   `json:"candidate"`
	ExistingIssues []workflow.DuplicateCandidate `json:"existing_issues"`
}

type duplicateResponse struct {
	Duplicates []struct {
		IssueID string  `json:"issue_id"`
		Title   string  `json:"title"`
		Score   float64 `json:"score"`
	} `json:"duplicates"`
}

// FindDuplicates queries the similarity index. An unreachable or timing-out
// backend yields ErrDetectionUnavailable; callers must treat that as
// "unknown", never as zero matches.
func (c *Client) FindDuplicates(ctx context.Context, candidate workflow.DuplicateCandidate, existing []workflow.DuplicateCandidate) ([]workflow.DuplicateMatch, error) {
	req := duplicateRequest{
		Candidate:      textPayload{Title: candidate.Title, Description: candidate.Description},
		ExistingIssues: existing,
	}

	var resp duplicateResponse
	if err := c.postJSON(ctx, "/api/find-duplicates/", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrDetectionUnavailable, err)
	}

	matches := make([]workflow.DuplicateMatch, 0, len(resp.Duplicates))
	for _, d := range resp.Duplicates {
		matches = append(matches, workflow.DuplicateMatch{
			IssueID: d.IssueID,
			Title:   d.Title,
			Score:   d.Score,
		})
	}
	return matches, nil
}

// Health pings the inference service.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %v", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %v", path, err)
	}
	return nil
}
