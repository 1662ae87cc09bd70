// Package partstack is a minimal client for the Partstack GraphQL stock API.
package partstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/LibrePCB/librepcb-api-server/internal/resilience"
)

const (
	// DefaultTimeout bounds a single batched stock query.
	DefaultTimeout = 8 * time.Second

	defaultRateLimit = 2
)

// stockFragment selects the product and summary fields used for part
// matching and availability derivation.
const stockFragment = `
fragment f on Stock {
  products {
    basic {
      manufacturer
      mfgpartno
      status
    }
    url
    imageUrl
    datasheetUrl
  }
  summary {
    inStockInventory
    medianPrice
    suppliersInStock
  }
}
`

// Lookup is one MPN to query. Index becomes the alias suffix of the query
// (q<Index>) and of its variable (mpn<Index>).
type Lookup struct {
	Index int
	MPN   string
}

// Alias returns the response key holding the result of l.
func (l Lookup) Alias() string {
	return fmt.Sprintf("q%d", l.Index)
}

// Request is the GraphQL request body.
type Request struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

// Response is a raw GraphQL response. The body is guaranteed to be valid
// JSON but its shape is not checked.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client queries stock information for a batch of MPNs in one request.
type Client interface {
	FindStocks(ctx context.Context, lookups []Lookup) (*Response, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables
// the limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

type httpClient struct {
	queryURL string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a Partstack client posting to queryURL with token as
// bearer credential.
func NewClient(queryURL, token string, opts ...Option) Client {
	c := &httpClient{
		queryURL: queryURL,
		token:    token,
		http: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(defaultRateLimit, defaultRateLimit),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BuildRequest assembles the batched query. Each lookup gets its own aliased
// findStocks selection sharing one fragment.
func BuildRequest(lookups []Lookup) Request {
	args := make([]string, 0, len(lookups))
	selections := make([]string, 0, len(lookups))
	vars := make(map[string]string, len(lookups))
	for _, l := range lookups {
		args = append(args, fmt.Sprintf("$mpn%d:String!", l.Index))
		selections = append(selections, fmt.Sprintf("%s:findStocks(mfgpartno:$mpn%d){...f}", l.Alias(), l.Index))
		vars[fmt.Sprintf("mpn%d", l.Index)] = l.MPN
	}
	return Request{
		Query:     fmt.Sprintf("query Stocks(%s) {\n%s\n}", strings.Join(args, ","), strings.Join(selections, "\n")) + stockFragment,
		Variables: vars,
	}
}

func (c *httpClient) FindStocks(ctx context.Context, lookups []Lookup) (*Response, error) {
	if len(lookups) == 0 {
		return nil, eris.New("partstack: no lookups")
	}

	body, err := json.Marshal(BuildRequest(lookups))
	if err != nil {
		return nil, eris.Wrap(err, "partstack: marshal request")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "partstack: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "partstack: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, multipart/mixed")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "partstack: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "partstack: read response")
	}

	// Quota and GraphQL errors come back as JSON with non-200 codes, so only
	// an unparsable body is a failure.
	if !gjson.ValidBytes(respBody) {
		err := eris.Errorf("partstack: invalid response (status %d): %.200s", resp.StatusCode, respBody)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
