// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/trial-prescreen/internal/httputil"
	"github.com/pdiddy/trial-prescreen/pkg/types"
)

const systemPrompt = `You are a clinical trial eligibility screener. You are given one eligibility criterion from a trial protocol and one patient's structured record.

Decide whether the patient satisfies the criterion:
- "pass": the record shows the patient satisfies it.
- "fail": the record clearly shows the patient is ineligible under it.
- "needs_review": the record is insufficient or ambiguous, or the criterion needs clinical judgment.

Never guess. Output ONLY valid JSON. No prose outside the JSON object.`

// reviewPromptTmpl is the user message sent for each criterion.
var reviewPromptTmpl = template.Must(template.New("review").Parse(`CRITERION ({{.Kind}}, id {{.ID}}):
{{.Text}}

PATIENT DATA:
{{.Patient}}

OUTPUT SCHEMA:
{"verdict": "pass | fail | needs_review", "reason": "names the specific value that decided it", "confidence": 0.95}
`))

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// backoffBase controls the base duration for exponential backoff between
// failed attempts. Tests override this to avoid real sleeps.
var backoffBase = 2 * time.Second

const (
	anthropicVersion  = "2023-06-01"
	maxTokens         = 1024
	defaultMaxRetries = 3

	unparseableReason = "Reviewer returned an unparseable response"
)

// ClaudeReviewer asks the Claude Messages API to decide a criterion.
type ClaudeReviewer struct {
	APIKey     string
	Model      string
	MaxRetries int
	Client     *http.Client
}

// NewClaudeReviewer builds a reviewer from cfg. A zero timeout leaves the
// HTTP client without one.
func NewClaudeReviewer(cfg types.AIConfig, timeout time.Duration) *ClaudeReviewer {
	return &ClaudeReviewer{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		MaxRetries: cfg.MaxRetries,
		Client:     &http.Client{Timeout: timeout},
	}
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Review renders the prompt and calls the API, retrying failed attempts with
// exponential backoff. A response that is not a valid decision becomes a
// needs_review decision with zero confidence rather than an error.
func (c *ClaudeReviewer) Review(ctx context.Context, criterion types.Criterion, candidate types.Candidate) (Decision, error) {
	prompt, err := renderPrompt(criterion, candidate)
	if err != nil {
		return Decision{}, fmt.Errorf("rendering prompt: %w", err)
	}

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return Decision{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := c.call(ctx, prompt)
		if err == nil {
			return parseDecision(text), nil
		}
		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}
		lastErr = err
	}
	return Decision{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// call sends one Messages API request and returns the first text block.
func (c *ClaudeReviewer) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(claudeRequest{
		Model:     c.Model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(msg))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}
	for _, block := range cResp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Claude API response")
}

// renderPrompt executes the review template for one criterion and candidate.
func renderPrompt(criterion types.Criterion, candidate types.Candidate) (string, error) {
	patient, err := json.MarshalIndent(candidate, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling candidate: %w", err)
	}
	var buf bytes.Buffer
	err = reviewPromptTmpl.Execute(&buf, struct {
		ID, Kind, Text, Patient string
	}{
		ID:      criterion.ID,
		Kind:    string(criterion.Kind),
		Text:    criterion.Text,
		Patient: string(patient),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parseDecision reads the model's JSON answer, tolerating a Markdown code
// fence around it.
func parseDecision(raw string) Decision {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimPrefix(raw, "json")
		if i := strings.LastIndex(raw, "```"); i >= 0 {
			raw = raw[:i]
		}
	}

	var d Decision
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &d); err != nil || !d.Verdict.Valid() {
		return Decision{Verdict: types.VerdictNeedsReview, Reason: unparseableReason}
	}
	d.Confidence = math.Max(0, math.Min(1, d.Confidence))
	return d
}
