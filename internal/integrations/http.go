package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type HttpClient interface {
	Do(ctx context.Context, method, requestUrl string, body, response interface{}, headers ...Header) error
}

// Header is an extra request header sent with a single call.
type Header struct {
	Key, Value string
}

// StatusError is returned for any non 2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

type impl struct {
	client  *http.Client
	baseUrl string
	headers []Header
}

func NewHttpClient(baseUrl string, headers ...Header) HttpClient {
	return NewHttpClientWithTimeout(baseUrl, 30*time.Second, headers...)
}

func NewHttpClientWithTimeout(baseUrl string, timeout time.Duration, headers ...Header) HttpClient {
	return impl{client: &http.Client{Timeout: timeout}, baseUrl: baseUrl, headers: headers}
}

func (c impl) Do(ctx context.Context, method, requestUrl string, body, response interface{}, headers ...Header) error {
	var reader io.Reader
	if body != nil {
		bodyBin, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(bodyBin)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+requestUrl, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for _, h := range c.headers {
		req.Header.Set(h.Key, h.Value)
	}
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}

	if response != nil && len(responseBody) > 0 {
		if err := json.Unmarshal(responseBody, response); err != nil {
			return err
		}
	}
	return nil
}
