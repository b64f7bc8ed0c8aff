package weibo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
)

// Client is the fetch capability: it turns a Unit into the raw payload bytes
// of one authenticated mobile API call. It is safe to invoke repeatedly with
// the same unit.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a mobile API client. cookie is the authenticated session
// cookie string; it is passed through verbatim and never inspected.
func NewClient(baseURL, userAgent, cookie string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	headers := map[string]string{
		"User-Agent": userAgent,
		"Referer":    baseURL + "/",
		"Accept":     "application/json, text/plain, */*",
	}
	if cookie != "" {
		headers["Cookie"] = cookie
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		baseURL:    baseURL,
		logger:     log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Fetch performs the HTTP call for a unit and returns the raw payload.
func (c *Client) Fetch(ctx context.Context, unit Unit) ([]byte, error) {
	endpoint, err := c.endpointFor(unit)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &errors.Error{Type: errors.ErrorTypeUnknown, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"unit":     unit.Key(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errors.Error{Type: errors.ErrorTypeFetch, Message: fmt.Sprintf("network error: %v", err)}
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"unit":     unit.Key(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeFetch,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return body, nil
}

func (c *Client) endpointFor(unit Unit) (string, error) {
	switch unit.Kind {
	case UnitProfile:
		return fmt.Sprintf("%s/api/container/getIndex?type=uid&value=%s", c.baseURL, url.QueryEscape(unit.UID)), nil
	case UnitListPage:
		endpoint := fmt.Sprintf("%s/api/container/getIndex?containerid=107603%s", c.baseURL, url.QueryEscape(unit.UID))
		if unit.Cursor != "" {
			endpoint += "&since_id=" + url.QueryEscape(unit.Cursor)
		}
		return endpoint, nil
	case UnitPostDetail:
		return fmt.Sprintf("%s/statuses/show?id=%s", c.baseURL, url.QueryEscape(unit.MID)), nil
	case UnitCommentPage:
		endpoint := fmt.Sprintf("%s/comments/hotflow?id=%s&mid=%s&max_id_type=0", c.baseURL, url.QueryEscape(unit.MID), url.QueryEscape(unit.MID))
		if unit.Cursor != "" {
			endpoint += "&max_id=" + url.QueryEscape(unit.Cursor)
		}
		return endpoint, nil
	default:
		return "", errors.New(errors.ErrorTypeUnknown, "unknown unit kind %q", unit.Kind)
	}
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errors.Error{Type: errors.ErrorTypeRateLimit, Message: "too many requests", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errors.Error{Type: errors.ErrorTypeAuth, Message: "session rejected", Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &errors.Error{Type: errors.ErrorTypeFetch, Message: "server error", Code: resp.StatusCode}
	default:
		return &errors.Error{Type: errors.ErrorTypeFetch, Message: "unexpected status", Code: resp.StatusCode}
	}
}
