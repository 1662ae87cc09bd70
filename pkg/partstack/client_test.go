package partstack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibrePCB/librepcb-api-server/internal/resilience"
)

func TestBuildRequest(t *testing.T) {
	req := BuildRequest([]Lookup{{Index: 0, MPN: "LM358"}, {Index: 3, MPN: "NE555"}})

	assert.Equal(t, map[string]string{"mpn0": "LM358", "mpn3": "NE555"}, req.Variables)
	assert.Contains(t, req.Query, "query Stocks($mpn0:String!,$mpn3:String!) {\n")
	assert.Contains(t, req.Query, "q0:findStocks(mfgpartno:$mpn0){...f}\nq3:findStocks(mfgpartno:$mpn3){...f}\n}")
	assert.Contains(t, req.Query, "fragment f on Stock {")
	assert.Contains(t, req.Query, "datasheetUrl")
	assert.Contains(t, req.Query, "suppliersInStock")
}

func TestLookupAlias(t *testing.T) {
	assert.Equal(t, "q7", Lookup{Index: 7, MPN: "X"}.Alias())
}

func TestFindStocks(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body      string
		wantErr   string
		transient bool
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"data":{"q0":{"products":[]}}}`,
		},
		{
			name:   "quota exhausted is not an error",
			status: http.StatusTooManyRequests,
			body:   `{"data":null,"message":"quota","nextAccessTime":"2026-01-01T00:00:00Z"}`,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "invalid response",
		},
		{
			name:      "html error page",
			status:    http.StatusBadGateway,
			body:      `<html>bad gateway</html>`,
			wantErr:   "status 502",
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "application/json, multipart/mixed", r.Header.Get("Accept"))
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

				var req Request
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "LM358", req.Variables["mpn0"])

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "test-token", WithRateLimit(0))
			resp, err := client.FindStocks(context.Background(), []Lookup{{Index: 0, MPN: "LM358"}})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, tt.transient, resilience.IsTransient(err))
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.body, string(resp.Body))
		})
	}
}

func TestFindStocks_NoLookups(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t").FindStocks(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFindStocks_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", WithTimeout(50*time.Millisecond), WithRateLimit(0))
	_, err := client.FindStocks(context.Background(), []Lookup{{Index: 0, MPN: "X"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
}

func TestFindStocks_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL, "t").FindStocks(ctx, []Lookup{{Index: 0, MPN: "X"}})
	require.Error(t, err)
}

func TestWithRateLimit_Throttles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", WithRateLimit(20))
	start := time.Now()
	for range 25 {
		_, err := client.FindStocks(context.Background(), []Lookup{{Index: 0, MPN: "X"}})
		require.NoError(t, err)
	}
	// Burst of 20, then 5 more at 20/s.
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
