//go:build integration

package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func newRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func send(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

func TestRequestID(t *testing.T) {
	generated := doRequest(t, http.MethodGet, "/api/orders", consumerToken, nil)
	defer generated.Body.Close()
	if generated.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing on an order listing")
	}

	req := newRequest(t, http.MethodGet, "/api/b2b/orders")
	req.Header.Set("Authorization", "Bearer "+businessToken)
	req.Header.Set("X-Request-ID", "checkout-trace-42")
	echoed := send(t, req)
	defer echoed.Body.Close()
	if got := echoed.Header.Get("X-Request-ID"); got != "checkout-trace-42" {
		t.Errorf("X-Request-ID: got %q, want checkout-trace-42", got)
	}
}

func TestCORS_PreflightBulkOrder(t *testing.T) {
	req := newRequest(t, http.MethodOptions, "/api/b2b/orders")
	req.Header.Set("Origin", "http://pharmacie.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")

	resp := send(t, req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin missing")
	}
	if methods := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "POST") {
		t.Errorf("Access-Control-Allow-Methods %q does not allow POST", methods)
	}
	if headers := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(headers, "Authorization") {
		t.Errorf("Access-Control-Allow-Headers %q does not allow Authorization", headers)
	}
}

func TestCORS_ExposesRetryAfter(t *testing.T) {
	req := newRequest(t, http.MethodGet, "/api/orders")
	req.Header.Set("Origin", "http://pharmacie.example")
	req.Header.Set("Authorization", "Bearer "+consumerToken)

	resp := send(t, req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	expose := resp.Header.Get("Access-Control-Expose-Headers")
	for _, h := range []string{"Retry-After", "X-Request-ID"} {
		if !strings.Contains(expose, h) {
			t.Errorf("Access-Control-Expose-Headers %q lacks %s", expose, h)
		}
	}
	if vary := resp.Header.Values("Vary"); !strings.Contains(strings.Join(vary, ","), "Origin") {
		t.Errorf("Vary %v lacks Origin", vary)
	}
}

func TestRateLimit_AppliesBeforeAuth(t *testing.T) {
	// Rejected checkouts still consume the client's budget.
	resp := doRequest(t, http.MethodPost, "/api/orders", "wrong-token", checkoutBody())
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if limit := resp.Header.Get("X-RateLimit-Limit"); limit != "1000" {
		t.Errorf("X-RateLimit-Limit: got %q, want 1000", limit)
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "" {
		t.Error("X-RateLimit-Remaining missing")
	}
}
