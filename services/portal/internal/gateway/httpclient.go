package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/fiction-portal/internal/platform/metrics"
)

// ClientConfig holds configurable settings for the store client.
type ClientConfig struct {
	Token          string
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client talks to the catalog store service over HTTP/JSON. Reads are retried
// with exponential backoff behind a circuit breaker; mutations run exactly
// once because the store does not deduplicate them.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Config     ClientConfig
	CB         *gobreaker.CircuitBreaker
	Log        *zap.Logger
	Metrics    *metrics.Collector
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.Metrics = m }
}

func NewClient(baseURL string, cfg ClientConfig, opts ...Option) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Config:     cfg,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ─── Gateway implementation ─────────────────────────────────────────────────

type seriesListResponse struct {
	Series []Series `json:"series"`
}

func (c *Client) ListSeries(ctx context.Context) ([]Series, error) {
	out, err := getWithBreaker[seriesListResponse](ctx, c, "/v1/series")
	if err != nil {
		return nil, err
	}
	return out.Series, nil
}

func (c *Client) GetSeries(ctx context.Context, id string) (Series, error) {
	out, err := getWithBreaker[Series](ctx, c, "/v1/series/"+url.PathEscape(id))
	if err != nil {
		return Series{}, err
	}
	return *out, nil
}

func (c *Client) CreateSeries(ctx context.Context, in SeriesInput) (Series, error) {
	out, err := doOnce[Series](ctx, c, http.MethodPost, "/v1/series", in)
	if err != nil {
		return Series{}, err
	}
	return *out, nil
}

func (c *Client) DeleteSeries(ctx context.Context, id string) error {
	_, err := doOnce[struct{}](ctx, c, http.MethodDelete, "/v1/series/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) AppendChapter(ctx context.Context, seriesID string, in ChapterInput) (Chapter, error) {
	out, err := doOnce[Chapter](ctx, c, http.MethodPost,
		"/v1/series/"+url.PathEscape(seriesID)+"/chapters", in)
	if err != nil {
		return Chapter{}, err
	}
	return *out, nil
}

func (c *Client) RemoveChapter(ctx context.Context, seriesID, chapterID string) error {
	_, err := doOnce[struct{}](ctx, c, http.MethodDelete,
		"/v1/series/"+url.PathEscape(seriesID)+"/chapters/"+url.PathEscape(chapterID), nil)
	return err
}

func (c *Client) PatchChapter(ctx context.Context, seriesID, chapterID string, patch ChapterPatch) (Chapter, error) {
	out, err := doOnce[Chapter](ctx, c, http.MethodPatch,
		"/v1/series/"+url.PathEscape(seriesID)+"/chapters/"+url.PathEscape(chapterID), patch)
	if err != nil {
		return Chapter{}, err
	}
	return *out, nil
}

func (c *Client) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	out, err := getWithBreaker[UserProfile](ctx, c, "/v1/profiles/"+url.PathEscape(userID))
	if err != nil {
		return UserProfile{}, err
	}
	return *out, nil
}

func (c *Client) EnsureProfile(ctx context.Context, userID string, seed ProfileSeed) (UserProfile, error) {
	out, err := doOnce[UserProfile](ctx, c, http.MethodPut, "/v1/profiles/"+url.PathEscape(userID), seed)
	if err != nil {
		return UserProfile{}, err
	}
	return *out, nil
}

func (c *Client) PatchProfile(ctx context.Context, userID string, patch ProfilePatch) (UserProfile, error) {
	out, err := doOnce[UserProfile](ctx, c, http.MethodPatch, "/v1/profiles/"+url.PathEscape(userID), patch)
	if err != nil {
		return UserProfile{}, err
	}
	return *out, nil
}

// ─── transport ──────────────────────────────────────────────────────────────

func getWithBreaker[T any](ctx context.Context, c *Client, path string) (*T, error) {
	if c.CB == nil {
		return getWithRetry[T](ctx, c, path)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return getWithRetry[T](ctx, c, path)
	})
	if err != nil {
		return nil, err
	}
	return result.(*T), nil
}

func getWithRetry[T any](ctx context.Context, c *Client, path string) (*T, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.Config.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			c.Log.Debug("retrying store request", zap.String("path", path), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		result, err := doJSON[T](ctx, c, http.MethodGet, path, nil)
		if err == nil {
			return result, nil
		}
		// Definitive answers from the store are not transient.
		if st, ok := status.FromError(err); ok && st.Code() != codes.Unavailable && st.Code() != codes.Internal {
			return nil, err
		}
		lastErr = err
		c.Log.Warn("store request failed", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, lastErr
}

func doOnce[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	return doJSON[T](ctx, c, method, path, body)
}

func doJSON[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.Token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if c.Metrics != nil {
		c.Metrics.StoreLatency(time.Since(start))
	}
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	defer resp.Body.Close()

	if c.Metrics != nil {
		c.Metrics.StoreStatus(resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return new(T), nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out T
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, status.Error(codes.Internal, fmt.Sprintf("store: decode error: %v", err))
		}
		return &out, nil
	default:
		return nil, statusFromHTTP(resp.StatusCode, b)
	}
}

func statusFromHTTP(code int, body []byte) error {
	msg := fmt.Sprintf("store: status %d body=%q", code, truncate(body, 200))
	switch code {
	case http.StatusNotFound:
		return status.Error(codes.NotFound, msg)
	case http.StatusBadRequest:
		return status.Error(codes.InvalidArgument, msg)
	case http.StatusConflict:
		return status.Error(codes.AlreadyExists, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return status.Error(codes.PermissionDenied, msg)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return status.Error(codes.Unavailable, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
