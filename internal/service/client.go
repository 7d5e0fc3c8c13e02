// Package service is the HTTP client for the Analysis and Dispatch
// services. It only knows the wire contracts; the workflow decides what a
// failure means to the user.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/slots"
	"github.com/nhle/subnotify/internal/transport"
)

const (
	previewPath = "/api/preview"
	sendPath    = "/api/send"

	teacherField = "teacher_file"
	subField     = "sub_file"
)

// Client talks to both services under one base URL. Requests carry no
// timeout of their own; a call ends when the server answers or the
// connection fails.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the services rooted at baseURL
// (e.g., http://localhost:8000).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SendRequest is the Dispatch Service request body.
type SendRequest struct {
	Config        transport.Wire      `json:"config"`
	Notifications []model.PreviewItem `json:"notifications"`
}

// Preview uploads both spreadsheets to the Analysis Service and returns
// the per-teacher groups in service order.
func (c *Client) Preview(
	ctx context.Context,
	teacher *slots.Blob,
	sub *slots.Blob,
) ([]model.PreviewItem, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, part := range []struct {
		field string
		blob  *slots.Blob
	}{
		{teacherField, teacher},
		{subField, sub},
	} {
		if part.blob == nil {
			return nil, fmt.Errorf("building preview request: %s is empty", part.field)
		}
		fw, err := w.CreateFormFile(part.field, part.blob.Name)
		if err != nil {
			return nil, fmt.Errorf("building preview request: %w", err)
		}
		if _, err := fw.Write(part.blob.Data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", part.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finishing preview request: %w", err)
	}

	var items []model.PreviewItem
	if err := c.do(ctx, OpPreview, previewPath, w.FormDataContentType(), &buf, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Send hands the whole dataset and transport config to the Dispatch
// Service and returns one outcome per submitted item.
func (c *Client) Send(
	ctx context.Context,
	cfg transport.Wire,
	notifications []model.PreviewItem,
) ([]model.DispatchResult, error) {
	if notifications == nil {
		notifications = []model.PreviewItem{}
	}
	data, err := json.Marshal(SendRequest{Config: cfg, Notifications: notifications})
	if err != nil {
		return nil, fmt.Errorf("marshaling send request: %w", err)
	}

	var results []model.DispatchResult
	if err := c.do(ctx, OpSend, sendPath, "application/json", bytes.NewReader(data), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// do posts body to path and decodes a 2xx JSON response into result.
// Non-2xx responses become *StatusError.
func (c *Client) do(
	ctx context.Context,
	op string,
	path string,
	contentType string,
	body io.Reader,
	result interface{},
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request POST %s: %w", path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading %s response body: %w", op, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(respBody),
		}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrMalformedResponse, op, err)
	}
	return nil
}

// extractDetail returns the "detail" member of an error body when it is a
// non-empty string. Structured details (lists, objects) are ignored.
func extractDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var detail string
	if json.Unmarshal(envelope.Detail, &detail) != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
