package openbudget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"openbudget/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second})
}

var testRequest = Request{BudgetCode: "0100000000", Year: 2024, Type: core.Program, Period: core.PeriodMonth}

func TestFetchBuildsQuery(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte("REP_PERIOD;COD_BUDGET\n01.2024;0100000000\n"))
	})

	req := testRequest
	req.Type = "economic"
	req.Period = "quarter"
	res, err := c.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.URL.Path != "/localBudgetData" {
		t.Fatalf("unexpected path %s", got.URL.Path)
	}
	q := got.URL.Query()
	want := map[string]string{
		"budgetCode":         "0100000000",
		"budgetItem":         "EXPENSES",
		"classificationType": "ECONOMIC",
		"period":             "QUARTER",
		"year":               "2024",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("param %s = %q, want %q", k, q.Get(k), v)
		}
		if res.Params[k] != v {
			t.Errorf("provenance %s = %q, want %q", k, res.Params[k], v)
		}
	}
	if !strings.HasSuffix(res.URL, got.URL.RawQuery) || len(res.Rows) != 1 || res.Format != FormatCSV {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestFetchHTTPStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("e", 500)))
	})

	_, err := c.Fetch(context.Background(), testRequest)
	if !errors.Is(err, ErrHTTPStatus) {
		t.Fatalf("expected ErrHTTPStatus, got %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError")
	}
	if fe.StatusCode != http.StatusBadGateway || len(fe.BodyPrefix) != maxBodyPrefix || !fe.Transient() {
		t.Fatalf("unexpected error details: %+v", fe)
	}
}

func TestFetchMaintenancePage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("<!DOCTYPE html><html>maintenance</html>"))
	})

	_, err := c.Fetch(context.Background(), testRequest)
	if !errors.Is(err, ErrMaintenance) {
		t.Fatalf("expected ErrMaintenance, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("status code should be part of the message: %v", err)
	}
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: base, Timeout: time.Second})
	_, err := c.Fetch(context.Background(), testRequest)
	if !errors.Is(err, ErrNetwork) || KindOf(err) != KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	})
	c.http.Timeout = 50 * time.Millisecond

	_, err := c.Fetch(context.Background(), testRequest)
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network kind on timeout, got %v", err)
	}
}

func TestFetchRejectsInvalidRequest(t *testing.T) {
	c := NewClient(DefaultConfig())
	_, err := c.Fetch(context.Background(), Request{Year: 2024, Type: "bogus", Period: core.PeriodMonth})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OPENBUDGET_BASE_URL", "http://localhost:9000/api")
	t.Setenv("OPENBUDGET_TIMEOUT", "5s")
	t.Setenv("OPENBUDGET_USER_AGENT", "test-agent")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://localhost:9000/api" || cfg.Timeout != 5*time.Second || cfg.UserAgent != "test-agent" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("OPENBUDGET_TIMEOUT", "soon")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error for bad timeout")
	}
}
