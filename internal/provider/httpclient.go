package provider

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

	"github.com/banktrail/ingestor/internal/platform/apperr"
)

// httpClient is the pooled, per-adapter HTTP client (§5: "HTTP clients per
// provider: pooled, with per-provider concurrency caps"). A short default
// timeout keeps a single slow provider call from starving a worker past the
// per-run deadline (§5).
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// doJSON issues method against url with body marshaled as JSON (nil body
// for GET), classifying the response per §7's error taxonomy: 429 -> Rate
// Limited, 5xx/network -> TransientProviderError, other 4xx -> Permanent.
func doJSON(ctx context.Context, client *http.Client, providerID, method, url string, headers map[string]string, body, out any) error {
	var reader io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperr.PermanentProviderError{ProviderID: providerID, Err: err}
		}

		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return apperr.PermanentProviderError{ProviderID: providerID, Err: err}
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperr.TransientProviderError{ProviderID: providerID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.TransientProviderError{ProviderID: providerID, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 0
		if v := resp.Header.Get("Retry-After"); v != "" {
			fmt.Sscanf(v, "%d", &retryAfter)
		}

		return apperr.RateLimited{ProviderID: providerID, RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return apperr.TransientProviderError{ProviderID: providerID, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperr.AuthFailure{Reason: fmt.Sprintf("provider %s rejected credentials (status %d)", providerID, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return apperr.PermanentProviderError{ProviderID: providerID, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.PermanentProviderError{ProviderID: providerID, Err: err}
	}

	return nil
}

// doForm posts an application/x-www-form-urlencoded body, for the handful of
// OAuth token endpoints that don't accept JSON. Response parsing and error
// classification mirror doJSON.
func doForm(ctx context.Context, client *http.Client, providerID, targetURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, strings.NewReader(form.Encode()))
	if err != nil {
		return apperr.PermanentProviderError{ProviderID: providerID, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return apperr.TransientProviderError{ProviderID: providerID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.TransientProviderError{ProviderID: providerID, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 0
		if v := resp.Header.Get("Retry-After"); v != "" {
			fmt.Sscanf(v, "%d", &retryAfter)
		}

		return apperr.RateLimited{ProviderID: providerID, RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return apperr.TransientProviderError{ProviderID: providerID, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperr.AuthFailure{Reason: fmt.Sprintf("provider %s rejected credentials (status %d)", providerID, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return apperr.PermanentProviderError{ProviderID: providerID, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.PermanentProviderError{ProviderID: providerID, Err: err}
	}

	return nil
}
