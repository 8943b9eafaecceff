package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultHTTPTimeout is the timeout of the http client used by the
	// REST services when the caller does not supply one.
	DefaultHTTPTimeout = 30 * time.Second

	// maxResponseSize caps how much of a response body is read. Raw
	// transactions are bounded by the block size, so this is generous.
	maxResponseSize = 8 << 20
)

// HTTPError is returned when a REST service answers with a non-2xx status.
type HTTPError struct {
	// Method and URL identify the failed request.
	Method string
	URL    string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Body is the trimmed response body.
	Body string
}

// Error returns a human-readable description of the failure.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL,
		e.StatusCode, e.Body)
}

// restClient is the small HTTP helper shared by the REST services.
type restClient struct {
	baseURL    string
	httpClient *http.Client
}

// newRestClient returns a restClient for the given base URL. A nil client
// is replaced by one with DefaultHTTPTimeout.
func newRestClient(baseURL string, httpClient *http.Client) restClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return restClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// do performs the request and returns the response body of a successful
// call.
func (c restClient) do(ctx context.Context, method, path string,
	body io.Reader, contentType string) ([]byte, error) {

	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, url,
			err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log.Tracef("%s %s", method, url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, url, err)
	}

	if resp.StatusCode < http.StatusOK ||
		resp.StatusCode >= http.StatusMultipleChoices {

		return nil, &HTTPError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	return data, nil
}

// getJSON fetches path and decodes the JSON response into v.
func (c restClient) getJSON(ctx context.Context, path string, v any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidResponse, path,
			err)
	}

	return nil
}

// getText fetches path and returns the trimmed response body.
func (c restClient) getText(ctx context.Context, path string) (string,
	error) {

	data, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}
