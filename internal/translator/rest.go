package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const restRequestTimeout = 30 * time.Second

func newRESTClient() *http.Client {
	return &http.Client{Timeout: restRequestTimeout}
}

// httpPoster is the JSON-over-HTTP seam the REST providers call through,
// replaced with a stub in tests.
type httpPoster interface {
	post(ctx context.Context, provider, url string, headers map[string]string, body, out any) error
}

type defaultPoster struct {
	client *http.Client
}

func (p defaultPoster) post(ctx context.Context, provider, url string, headers map[string]string, body, out any) error {
	return postJSON(ctx, p.client, provider, url, headers, body, out)
}

// postJSON sends body as JSON and decodes the response into out. Non-2xx
// statuses are returned as *ProviderError with the kind derived from the
// status code.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &ProviderError{Provider: provider, Kind: ProviderBadResponse, Message: "encoding request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &ProviderError{Provider: provider, Kind: ProviderUnavailable, Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &ProviderError{Provider: provider, Kind: ProviderUnavailable, Message: "sending request", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProviderError{
			Provider: provider,
			Kind:     classifyHTTPStatus(resp.StatusCode),
			Message:  fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Provider: provider, Kind: ProviderBadResponse, Message: "decoding response", Cause: err}
	}
	return nil
}

func classifyHTTPStatus(status int) ProviderErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return ProviderQuotaExceeded
	case status == http.StatusForbidden:
		// Translation APIs report exhausted quotas as 403 as often as 429.
		return ProviderQuotaExceeded
	case status >= 500:
		return ProviderUnavailable
	case status == http.StatusUnauthorized:
		return ProviderUnavailable
	default:
		return ProviderBadResponse
	}
}
