package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response from the server, decoded from its
// error body. Binding failures carry the offending values so the CLI
// can show them without a second request.
type APIError struct {
	HTTPStatus       int      `json:"http_status"`
	Message          string   `json:"error"`
	Code             string   `json:"code,omitempty"`
	TotalNonMatching int64    `json:"total_non_matching,omitempty"`
	FactValues       []string `json:"fact_values,omitempty"`
	ReferenceValues  []string `json:"reference_values,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// Client is a thin JSON client for the statcube server API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(host string) *Client {
	return &Client{
		baseURL: strings.TrimRight(host, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
			if apiErr.Message == "" {
				apiErr.Message = resp.Status
			}
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, "", nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, http.MethodPost, path, nil, contentType, body, out)
}

// PostRaw sends an opaque body, used for fact-table and lookup uploads
// and for extractor envelopes authored as JSON files.
func (c *Client) PostRaw(ctx context.Context, path string, query url.Values, contentType string, body io.Reader, out any) error {
	return c.do(ctx, http.MethodPost, path, query, contentType, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", nil, nil)
}
