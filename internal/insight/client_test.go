package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"medbudget/internal/core"
)

func sampleTxns() []core.Transaction {
	return []core.Transaction{
		{
			ID:       "t1",
			Type:     core.Income,
			Amount:   decimal.RequireFromString("1500.00"),
			Category: "Visite private",
			Date:     time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:       "t2",
			Type:     core.Expense,
			Amount:   decimal.RequireFromString("400.00"),
			Category: "Affitto studio",
			Date:     time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC),
		},
	}
}

func fakeGemini(t *testing.T, calls *atomic.Int64, insights []core.Insight) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("x-goog-api-key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		text, _ := json.Marshal(insights)
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": string(text)}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestAnalyzeReturnsModelInsights(t *testing.T) {
	want := []core.Insight{
		{Title: "Affitto alto", Content: "L'affitto pesa per il 27% delle entrate.", Type: "warning"},
	}
	var calls atomic.Int64
	srv := fakeGemini(t, &calls, want)
	defer srv.Close()

	c := NewClient("test-key", "gemini-3-flash-preview")
	c.baseURL = srv.URL

	got := c.Analyze(context.Background(), "user-1", sampleTxns())
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("Analyze() = %+v, want %+v", got, want)
	}
}

func TestAnalyzePlaceholderWithoutAPIKey(t *testing.T) {
	c := NewClient("", "gemini-3-flash-preview")

	got := c.Analyze(context.Background(), "user-1", sampleTxns())
	if len(got) != 1 || got[0].Type != "info" {
		t.Errorf("Analyze() without key = %+v, want info placeholder", got)
	}
}

func TestAnalyzePlaceholderWithoutTransactions(t *testing.T) {
	c := NewClient("test-key", "gemini-3-flash-preview")

	got := c.Analyze(context.Background(), "user-1", nil)
	if len(got) != 1 || got[0].Title != Placeholder[0].Title {
		t.Errorf("Analyze() without transactions = %+v, want placeholder", got)
	}
}

func TestAnalyzePlaceholderOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("test-key", "gemini-3-flash-preview")
	c.baseURL = srv.URL

	got := c.Analyze(context.Background(), "user-1", sampleTxns())
	if len(got) != 1 || got[0].Type != "info" {
		t.Errorf("Analyze() on server error = %+v, want info placeholder", got)
	}
}

func TestAnalyzeCollapsesConcurrentCalls(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		text, _ := json.Marshal([]core.Insight{{Title: "ok", Content: "ok", Type: "success"}})
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": string(text)}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient("test-key", "gemini-3-flash-preview")
	c.baseURL = srv.URL

	const workers = 5
	var wg sync.WaitGroup
	started := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			c.Analyze(context.Background(), "same-user", sampleTxns())
		}()
	}
	for i := 0; i < workers; i++ {
		<-started
	}
	time.Sleep(50 * time.Millisecond) // let all goroutines reach the singleflight
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("upstream called %d times for concurrent analyses, want 1", n)
	}
}
