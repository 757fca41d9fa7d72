package jenkins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const apiKeyHeader = "apikey"

type (
	// Dispatcher triggers a build job and returns the queue reference of the build.
	Dispatcher interface {
		Dispatch(ctx context.Context, jobURL string, data map[string]interface{}) (string, error)
	}

	// DispatchError carries whatever the build system answered with.
	DispatchError struct {
		StatusCode int
		Body       string
		Err        error
	}

	dispatcher struct {
		client *http.Client
		apiKey string
	}
)

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("dispatch failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func NewDispatcher(apiKey string, timeout time.Duration) Dispatcher {
	return &dispatcher{
		apiKey: apiKey,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Dispatch posts data as query parameters. Only a 201 with a Location header counts
// as accepted; everything else is a *DispatchError. There are no retries.
func (d *dispatcher) Dispatch(ctx context.Context, jobURL string, data map[string]interface{}) (string, error) {
	if d.apiKey == "" {
		return "", &DispatchError{Err: fmt.Errorf("proxy api key is not configured")}
	}

	u, err := url.Parse(jobURL)
	if err != nil {
		return "", &DispatchError{Err: fmt.Errorf("invalid job url %q: %w", jobURL, err)}
	}
	query := u.Query()
	for key, value := range data {
		query.Set(key, fmt.Sprintf("%v", value))
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return "", &DispatchError{Err: err}
	}
	req.Header.Set(apiKeyHeader, d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &DispatchError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	location := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusCreated || location == "" {
		return "", &DispatchError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return location, nil
}
