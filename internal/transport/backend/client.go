// Package backend is the HTTP client for the remote keyframe search API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	"github.com/kailas-cloud/kfsearch/internal/metrics"
)

// maxBodyBytes caps any response body; the image path catalogue is the largest.
const maxBodyBytes = 64 << 20

// Endpoint labels used in errors and metrics.
const (
	EndpointImagePaths   = "image_paths"
	EndpointImageSearch  = "image_search"
	EndpointTextSearch   = "text_search"
	EndpointUploadSearch = "upload_search"
	EndpointVideoInfo    = "video_info"
	EndpointFrameTime    = "get_time"
	EndpointMapKeyframe  = "map"
	endpointHealth       = "health"
)

// Config holds the search API client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64 // 0 = unlimited
	Burst      int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls the remote search API.
type Client struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a search API client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		base:    base,
		client:  hc,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// ImagePaths fetches the full catalogue ordered by id.
func (c *Client) ImagePaths(ctx context.Context) ([]image.Record, error) {
	var resp imagePathsResponse
	if err := c.getJSON(ctx, EndpointImagePaths, "/api/image_paths", nil, &resp); err != nil {
		return nil, err
	}
	return catalogFromPaths(resp.ImagePaths), nil
}

// ImageSearch finds images similar to a catalogue image.
func (c *Client) ImageSearch(ctx context.Context, imageID, k int) ([]image.Record, error) {
	var resp searchResponse
	body := imageSearchRequest{ImageID: imageID, K: k}
	if err := c.postJSON(ctx, EndpointImageSearch, "/api/image_search", body, &resp); err != nil {
		return nil, err
	}
	return recordsFromRows(resp.Results), nil
}

// TextSearch finds images matching a text query.
func (c *Client) TextSearch(ctx context.Context, text string, k int) ([]image.Record, error) {
	var resp searchResponse
	body := textSearchRequest{Query: text, K: k}
	if err := c.postJSON(ctx, EndpointTextSearch, "/api/text_search", body, &resp); err != nil {
		return nil, err
	}
	return recordsFromRows(resp.Results), nil
}

// UploadSearch finds images similar to uploaded image bytes (multipart form: image, k).
func (c *Client) UploadSearch(ctx context.Context, filename string, data []byte, k int) ([]image.Record, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.WriteField("k", strconv.Itoa(k)); err != nil {
		return nil, fmt.Errorf("write form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var resp searchResponse
	err = c.do(ctx, EndpointUploadSearch, http.MethodPost, "/api/upload_search", nil,
		bytes.NewReader(buf.Bytes()), mw.FormDataContentType(), func(b []byte) error {
			return json.Unmarshal(b, &resp)
		})
	if err != nil {
		return nil, err
	}
	return recordsFromRows(resp.Results), nil
}

// VideoInfo returns the frame rate of a video.
func (c *Client) VideoInfo(ctx context.Context, video string) (float64, error) {
	var resp videoInfoResponse
	path := "/api/video_info/" + url.PathEscape(video)
	if err := c.getJSON(ctx, EndpointVideoInfo, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.FPS, nil
}

// FrameTime returns the playback time of a keyframe as served by /get_time.
func (c *Client) FrameTime(ctx context.Context, video, frame, videoPath string) (string, error) {
	q := url.Values{"video": {video}, "id": {frame}, "videoPath": {videoPath}}
	return c.getText(ctx, EndpointFrameTime, "/get_time", q)
}

// MapKeyframe resolves a frame file name to the keyframe identifier used in exports.
func (c *Client) MapKeyframe(ctx context.Context, video, frame string) (string, error) {
	q := url.Values{"video": {video}, "id": {frame}}
	return c.getText(ctx, EndpointMapKeyframe, "/map", q)
}

// HealthCheck reports whether the API answers below HTTP 500.
func (c *Client) HealthCheck(ctx context.Context) error {
	err := c.do(ctx, endpointHealth, http.MethodGet, "/", nil, nil, "", nil)
	var se *domain.StatusError
	if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
		return nil
	}
	return err
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	return c.do(ctx, endpoint, http.MethodGet, path, q, nil, "", func(b []byte) error {
		return json.Unmarshal(b, out)
	})
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}
	return c.do(ctx, endpoint, http.MethodPost, path, nil, bytes.NewReader(body), "application/json",
		func(b []byte) error { return json.Unmarshal(b, out) })
}

func (c *Client) getText(ctx context.Context, endpoint, path string, q url.Values) (string, error) {
	var text string
	err := c.do(ctx, endpoint, http.MethodGet, path, q, nil, "", func(b []byte) error {
		text = strings.TrimSpace(string(b))
		return nil
	})
	return text, err
}

// do performs one rate-limited request. decode is called with the body of a 2xx response.
// Every failure wraps domain.ErrBackendUnavailable.
func (c *Client) do(
	ctx context.Context,
	endpoint, method, path string,
	q url.Values,
	body io.Reader,
	contentType string,
	decode func([]byte) error,
) (err error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		metrics.BackendRequestsTotal.WithLabelValues(endpoint, status).Inc()
		if err != nil {
			c.logger.Debug("Backend request failed",
				zap.String("endpoint", endpoint), zap.Duration("latency", time.Since(start)), zap.Error(err))
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: rate limiter wait: %w", domain.ErrBackendUnavailable, endpoint, err)
	}

	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%w: %s: create request: %w", domain.ErrBackendUnavailable, endpoint, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrBackendUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status = "http_" + strconv.Itoa(resp.StatusCode)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return domain.NewStatusError(endpoint, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %w", domain.ErrBackendUnavailable, endpoint, err)
	}
	if decode != nil {
		if err := decode(data); err != nil {
			return fmt.Errorf("%w: %s: decode response: %w", domain.ErrBackendUnavailable, endpoint, err)
		}
	}
	status = "ok"
	return nil
}
