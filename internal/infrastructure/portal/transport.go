package portal

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
)

// HTTPStatusError carries a non-2xx portal response.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "portal status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("portal %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("portal %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// doJSON executes one JSON API call with the given header bag. A nil out
// skips decoding; some portal endpoints answer 204 or an empty body.
func (c *Client) doJSON(
	ctx context.Context,
	method, baseURL, endpoint string,
	query url.Values,
	payload, out any,
	headers *headerBag,
	operation string,
) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}

	target := baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	headers.apply(req)

	resp, err := c.send(ctx, req, operation)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newStatusError(operation, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// putBinary uploads raw bytes to a signed URL. Transfer headers are derived
// from the session bag with the content type swapped to zip and an explicit
// length; the bag itself is restored by the caller.
func (c *Client) putBinary(ctx context.Context, signedURL string, data []byte, headers *headerBag, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	headers.apply(req)
	req.ContentLength = int64(len(data))

	resp, err := c.send(ctx, req, operation)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newStatusError(operation, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) send(ctx context.Context, req *http.Request, operation string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", operation, err)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portal %s request: %w", operation, err)
	}
	return resp, nil
}

func newStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// formatMegabytes reports a byte count in MB with two-decimal rounding, the
// unit the upload-files endpoint expects.
func formatMegabytes(size int64) float64 {
	return math.Round(float64(size)/(1024*1024)*100) / 100
}
