package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a provider response is read
const maxBodyBytes = 8 << 20

// MetricsRecorder receives per-fetch outcomes
type MetricsRecorder interface {
	SourceRequest(source string, reason cricket.Reason)
	ObserveRequest(source string, seconds float64)
}

// Deps are the collaborators every provider client shares
type Deps struct {
	Cache   cricket.CacheProvider
	Quota   cricket.QuotaProvider
	Breaker *Breaker
	Metrics MetricsRecorder
	Logger  *logrus.Logger
}

// ClientConfig is the per-provider connection configuration
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Host    string
	Timeout time.Duration
}

// apiClient implements the request pipeline shared by all providers:
// credentials, cache, breaker, quota and throttle, HTTP, decode, cache store.
type apiClient struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	deps       Deps
	authorize  func(req *http.Request, query url.Values)
	now        func() time.Time
}

func newAPIClient(name string, cfg ClientConfig, deps Deps, authorize func(req *http.Request, query url.Values)) *apiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &apiClient{
		name:       name,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		deps:       deps,
		authorize:  authorize,
		now:        time.Now,
	}
}

// request describes one upstream call. Endpoint is the throttle and cache
// label; path is appended to the base URL. keyParams are folded into the
// cache key without being sent upstream.
type request struct {
	capability cricket.Capability
	endpoint   string
	path       string
	query      url.Values
	keyParams  map[string]string
}

func (r request) cacheKey(source string) cricket.CacheKey {
	params := make(map[string]string, len(r.query)+len(r.keyParams)+1)
	for k, v := range r.query {
		params[k] = strings.Join(v, ",")
	}
	for k, v := range r.keyParams {
		params["_"+k] = v
	}
	if r.path != r.endpoint {
		params["_path"] = r.path
	}
	return cricket.CacheKey{
		Source:     source,
		Capability: r.capability,
		Endpoint:   r.endpoint,
		Params:     params,
	}
}

// decoder turns a raw 2xx body into records or a failure reason
type decoder[T any] func(body []byte) ([]T, cricket.Reason)

// fetch runs req through the shared pipeline. Successful non-empty results are cached.
func fetch[T any](ctx context.Context, c *apiClient, req request, decode decoder[T]) ([]T, cricket.Reason) {
	records, reason := fetchUncounted(ctx, c, req, decode)
	if c.deps.Metrics != nil {
		c.deps.Metrics.SourceRequest(c.name, reason)
	}
	return records, reason
}

func fetchUncounted[T any](ctx context.Context, c *apiClient, req request, decode decoder[T]) ([]T, cricket.Reason) {
	if c.apiKey == "" {
		return nil, cricket.ReasonAuthMissing
	}

	key := req.cacheKey(c.name)
	if c.deps.Cache != nil {
		var cached []T
		if c.deps.Cache.Get(ctx, key, &cached) {
			c.log(req).Debug("Using cached data")
			return cached, cricket.ReasonNone
		}
	}

	// a call the breaker would reject must not spend quota
	if c.deps.Breaker != nil && !c.deps.Breaker.Admits() {
		c.log(req).WithField("breaker", c.deps.Breaker.State().String()).Warn("Circuit breaker rejecting calls, skipping source")
		return nil, cricket.ReasonNetworkError
	}

	if c.deps.Quota != nil {
		if reason := c.deps.Quota.Acquire(ctx, req.endpoint); !reason.OK() {
			return nil, reason
		}
	}

	body, reason := c.do(ctx, req)
	if !reason.OK() {
		return nil, reason
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, cricket.ReasonEmptyResponse
	}

	records, reason := decode(body)
	if !reason.OK() {
		c.log(req).WithField("reason", string(reason)).Warn("Provider response rejected")
		return nil, reason
	}
	if len(records) == 0 {
		return nil, cricket.ReasonNoData
	}

	if c.deps.Cache != nil {
		c.deps.Cache.Put(ctx, key, records)
	}
	return records, cricket.ReasonNone
}

// httpStatusError marks a completed exchange with a non-2xx status
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d", e.status)
}

// httpResult carries a response through the breaker. Client errors are
// returned as results so they do not count as upstream failures.
type httpResult struct {
	status int
	body   []byte
}

func (c *apiClient) do(ctx context.Context, req request) ([]byte, cricket.Reason) {
	call := func() (interface{}, error) {
		return c.roundTrip(ctx, req)
	}

	start := c.now()
	var (
		result interface{}
		err    error
	)
	if c.deps.Breaker != nil {
		result, err = c.deps.Breaker.Execute(call)
	} else {
		result, err = call()
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.ObserveRequest(c.name, c.now().Sub(start).Seconds())
	}

	if err == nil {
		res := result.(httpResult)
		if res.status < 200 || res.status > 299 {
			err = &httpStatusError{status: res.status}
		} else {
			return res.body, cricket.ReasonNone
		}
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		c.log(req).WithField("status", statusErr.status).Warn("Provider returned error status")
		return nil, cricket.ReasonHTTPError
	}
	c.log(req).WithError(err).Warn("Provider request failed")
	return nil, cricket.ReasonNetworkError
}

func (c *apiClient) roundTrip(ctx context.Context, req request) (httpResult, error) {
	u := c.baseURL + "/" + strings.TrimLeft(req.path, "/")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return httpResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	q := httpReq.URL.Query()
	for k, vs := range req.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.authorize != nil {
		c.authorize(httpReq, q)
	}
	httpReq.URL.RawQuery = q.Encode()

	c.log(req).Debug("Provider API request")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return httpResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return httpResult{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return httpResult{}, &httpStatusError{status: resp.StatusCode}
	}
	return httpResult{status: resp.StatusCode, body: body}, nil
}

func (c *apiClient) log(req request) *logrus.Entry {
	return c.deps.Logger.WithFields(logrus.Fields{
		"component": "provider",
		"source":    c.name,
		"endpoint":  req.endpoint,
	})
}
