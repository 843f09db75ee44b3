package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medbudget/internal/core"
)

// HTTPClient talks to the gateway server's JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Gateway = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *HTTPClient) Register(ctx context.Context, username, password string) (Auth, error) {
	var out Auth
	err := c.do(ctx, http.MethodPost, "/api/auth/register", "", credentials{username, password}, &out)
	return out, err
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (Auth, error) {
	var out Auth
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", credentials{username, password}, &out)
	return out, err
}

func (c *HTTPClient) GetProfile(ctx context.Context, token string) (core.Profile, error) {
	var out core.Profile
	err := c.do(ctx, http.MethodGet, "/api/profile", token, nil, &out)
	return out, err
}

func (c *HTTPClient) SaveProfile(ctx context.Context, token string, p core.Profile) (core.Profile, error) {
	var out core.Profile
	err := c.do(ctx, http.MethodPost, "/api/profile", token, p, &out)
	return out, err
}

func (c *HTTPClient) ListTransactions(ctx context.Context, token string) ([]core.Transaction, error) {
	var out []core.Transaction
	err := c.do(ctx, http.MethodGet, "/api/transactions", token, nil, &out)
	return out, err
}

func (c *HTTPClient) AddTransaction(ctx context.Context, token string, in core.TransactionInput) (core.Transaction, error) {
	var out core.Transaction
	err := c.do(ctx, http.MethodPost, "/api/transactions", token, in, &out)
	return out, err
}

func (c *HTTPClient) Insights(ctx context.Context, token string) ([]core.Insight, error) {
	var out []core.Insight
	err := c.do(ctx, http.MethodPost, "/api/insights", token, nil, &out)
	return out, err
}

// Health reports server reachability. Transport failures are classified
// into the same diagnostics the server uses for its database.
func (c *HTTPClient) Health(ctx context.Context) core.Health {
	start := time.Now()

	var health core.Health
	if err := c.do(ctx, http.MethodGet, "/api/health", "", nil, &health); err != nil {
		// A 503 still carries the server's own diagnostic report.
		if health.Status == core.StatusOffline && health.Message != "" {
			return health
		}
		return core.Health{
			Status:  core.StatusOffline,
			Message: classifyTransportError(err),
		}
	}

	if health.LatencyMs == 0 {
		health.LatencyMs = time.Since(start).Milliseconds()
	}
	return health
}

func classifyTransportError(err error) string {
	msg := err.Error()
	var userMessage string
	switch {
	case strings.Contains(msg, "connection refused"):
		userMessage = "Server non raggiungibile (connessione rifiutata)."
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		userMessage = "Timeout di connessione al server."
	case strings.Contains(msg, "no such host"):
		userMessage = "Indirizzo del server non valido."
	default:
		userMessage = "Errore di connessione al server."
	}
	return fmt.Sprintf("%s Dettaglio: %s", userMessage, msg)
}

// do performs a request and decodes the JSON reply into out. Non-2xx
// replies are mapped onto the shared domain errors.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out any) error {
	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	// Best effort decode of the error payload; out may also receive the
	// body (the health endpoint answers 503 with a full report).
	raw, _ := io.ReadAll(resp.Body)
	if out != nil {
		json.Unmarshal(raw, out)
	}
	var eb errorBody
	json.Unmarshal(raw, &eb)

	return statusError(resp.StatusCode, path, eb.Error)
}

func statusError(status int, path, message string) error {
	switch status {
	case http.StatusUnauthorized:
		if strings.HasSuffix(path, "/login") {
			return core.ErrInvalidCredentials
		}
		return core.ErrUnauthenticated
	case http.StatusConflict:
		return core.ErrDuplicateUsername
	case http.StatusNotFound:
		if strings.HasSuffix(path, "/profile") {
			return core.ErrProfileNotFound
		}
	case http.StatusServiceUnavailable:
		return core.ErrUnavailable
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return fmt.Errorf("server error (%d): %s", status, message)
}
