// Package insight generates short financial advice from a user's ledger by
// calling the Gemini API. The call is best effort: whenever the model is
// unreachable or misbehaves the client falls back to a static notice, so
// the dashboard always has something to show.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"medbudget/internal/core"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Placeholder is shown when no AI-generated advice is available.
var Placeholder = []core.Insight{
	{
		Title:   "Analisi non disponibile",
		Content: "Aggiungi qualche movimento e riprova più tardi per ricevere consigli personalizzati.",
		Type:    "info",
	},
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string

	// collapses concurrent analyses for the same user into one upstream call
	group singleflight.Group
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

// Analyze produces insights for the user's ledger. Concurrent calls for the
// same user share a single upstream request. It never returns an error:
// on any failure the static placeholder is returned instead.
func (c *Client) Analyze(ctx context.Context, userID string, txns []core.Transaction) []core.Insight {
	v, _, _ := c.group.Do(userID, func() (any, error) {
		return c.analyze(ctx, userID, txns), nil
	})
	return v.([]core.Insight)
}

func (c *Client) analyze(ctx context.Context, userID string, txns []core.Transaction) []core.Insight {
	if c.apiKey == "" {
		slog.DebugContext(ctx, "Gemini API key not configured, returning placeholder")
		return Placeholder
	}
	if len(txns) == 0 {
		return Placeholder
	}

	insights, err := c.generate(ctx, txns)
	if err != nil {
		slog.ErrorContext(ctx, "Insight generation failed, returning placeholder",
			"user_id", userID, "error", err)
		return Placeholder
	}
	if len(insights) == 0 {
		return Placeholder
	}
	return insights
}

func (c *Client) generate(ctx context.Context, txns []core.Transaction) ([]core.Insight, error) {
	payload, err := json.Marshal(c.buildRequest(txns))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call Gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Gemini returned status %d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var insights []core.Insight
	text := gr.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(text), &insights); err != nil {
		return nil, fmt.Errorf("parse insights JSON: %w", err)
	}
	return insights, nil
}

func (c *Client) buildRequest(txns []core.Transaction) generateRequest {
	summary := core.Summarize(txns)
	breakdown := core.CategoryBreakdown(txns, core.Expense)

	var sb strings.Builder
	sb.WriteString("Sei un consulente finanziario per studi medici italiani. ")
	sb.WriteString("Analizza questi dati e restituisci 2-4 consigli brevi e concreti in italiano.\n\n")
	fmt.Fprintf(&sb, "Entrate totali: %s\n", core.FormatEuros(summary.TotalIncome))
	fmt.Fprintf(&sb, "Uscite totali: %s\n", core.FormatEuros(summary.TotalExpenses))
	fmt.Fprintf(&sb, "Bilancio: %s\n", core.FormatEuros(summary.Balance))
	sb.WriteString("Uscite per categoria:\n")
	for _, ct := range breakdown {
		fmt.Fprintf(&sb, "- %s: %s\n", ct.Category, core.FormatEuros(ct.Total))
	}

	return generateRequest{
		Contents: []content{{Parts: []part{{Text: sb.String()}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: &schema{
				Type: "ARRAY",
				Items: &schema{
					Type: "OBJECT",
					Properties: map[string]*schema{
						"title":   {Type: "STRING"},
						"content": {Type: "STRING"},
						"type":    {Type: "STRING", Enum: []string{"success", "warning", "info"}},
					},
					Required: []string{"title", "content", "type"},
				},
			},
		},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

type schema struct {
	Type       string             `json:"type"`
	Items      *schema            `json:"items,omitempty"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
