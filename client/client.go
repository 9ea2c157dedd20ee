package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/starnet/internal/domain"
)

const (
	defaultTimeout = 3 * time.Second
	userAgent      = "starnet-client/1.0"
)

// Client talks to the REST surface of a STARNET node.
type Client struct {
	client   *http.Client
	cache    *cache.Cache
	baseURL  string
	avatarID string
}

func New(node string) *Client {
	if !strings.HasPrefix(node, "http://") && !strings.HasPrefix(node, "https://") {
		node = "https://" + node
	}
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}
	c := &Client{
		client:  &httpClient,
		cache:   cache.New(10*time.Minute, 15*time.Minute),
		baseURL: strings.TrimSuffix(node, "/"),
	}
	httpClient.Transport = c
	return c
}

// WithAvatar returns a copy of c that acts as avatarID.
func (c *Client) WithAvatar(avatarID string) *Client {
	cc := *c
	cc.avatarID = avatarID
	cc.client = &http.Client{
		Timeout:   c.client.Timeout,
		Transport: &cc,
	}
	return &cc
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	if c.avatarID != "" {
		req.Header.Set(domain.AvatarIdHeader, c.avatarID)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// ResponseError is a failed envelope returned by the node.
type ResponseError struct {
	StatusCode int
	Message    string
	Exception  string
}

func (e *ResponseError) Error() string {
	if e.Exception != "" {
		return fmt.Sprintf("%d: %s (%s)", e.StatusCode, e.Message, e.Exception)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// HttpRequest sends body as JSON and decodes the result of the envelope into response.
func (c *Client) HttpRequest(ctx context.Context, method, path string, body, response any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Result    json.RawMessage `json:"result"`
		IsError   bool            `json:"isError"`
		Message   string          `json:"message"`
		Exception string          `json:"exception"`
	}
	err = json.NewDecoder(resp.Body).Decode(&envelope)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	if resp.StatusCode != http.StatusOK || envelope.IsError {
		return &ResponseError{
			StatusCode: resp.StatusCode,
			Message:    envelope.Message,
			Exception:  envelope.Exception,
		}
	}

	if response == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, response); err != nil {
		return fmt.Errorf("failed to decode result: %v", err)
	}
	return nil
}

func (c *Client) GetWellKnown(ctx context.Context) (domain.WellKnown, error) {
	cacheKey := "wellknown:" + c.baseURL
	if x, found := c.cache.Get(cacheKey); found {
		return x.(domain.WellKnown), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/.well-known/starnet", nil)
	if err != nil {
		return domain.WellKnown{}, fmt.Errorf("failed to create request: %v", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.WellKnown{}, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.WellKnown{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var wk domain.WellKnown
	if err := json.NewDecoder(resp.Body).Decode(&wk); err != nil {
		return domain.WellKnown{}, fmt.Errorf("failed to decode well-known: %v", err)
	}
	c.cache.Set(cacheKey, wk, cache.DefaultExpiration)
	return wk, nil
}

func holonPath(family, id string) string {
	return "/api/" + url.PathEscape(family) + "/" + url.PathEscape(id)
}

func (c *Client) GetHolon(ctx context.Context, family, id string, version int) (domain.Holon, error) {
	path := holonPath(family, id)
	if version != domain.LatestVersion {
		path += "?version=" + strconv.Itoa(version)
	}

	var h domain.Holon
	err := c.HttpRequest(ctx, http.MethodGet, path, nil, &h)
	return h, err
}

func (c *Client) Versions(ctx context.Context, family, id string) ([]domain.Holon, error) {
	var list []domain.Holon
	err := c.HttpRequest(ctx, http.MethodGet, holonPath(family, id)+"/versions", nil, &list)
	return list, err
}

// Network lists what the node has registered for family. Results are
// cached for a minute.
func (c *Client) Network(ctx context.Context, family string) ([]domain.NetworkEntry, error) {
	cacheKey := "network:" + c.baseURL + ":" + family
	if x, found := c.cache.Get(cacheKey); found {
		return x.([]domain.NetworkEntry), nil
	}

	var entries []domain.NetworkEntry
	err := c.HttpRequest(ctx, http.MethodGet, "/api/"+url.PathEscape(family)+"/network", nil, &entries)
	if err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, entries, time.Minute)
	return entries, nil
}
