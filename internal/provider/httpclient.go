package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tripkit/internal/metrics"
)

const (
	// UserAgent is sent on every upstream request.
	UserAgent = "tripkit/0.1"

	maxResponseBytes = 2 << 20 // 2MB
)

// SharedHTTPClient returns an HTTP client with connection pooling.
// Use this instead of creating individual clients per lookup service.
func SharedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// StatusError is returned by FetchJSON for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Fetch performs a single GET and returns the (size-limited) body.
// Non-2xx responses return the body together with a *StatusError.
// There is no retry: callers decide how to degrade. Errors never carry the
// query string or any of the given secrets.
func Fetch(ctx context.Context, client *http.Client, rawURL string, secrets ...string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", scrubError(err, secrets))
	}
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := client.Do(req)
	metrics.ProviderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequest(req.URL.Host, "error").Inc()
		return nil, fmt.Errorf("request failed: %w", scrubError(err, secrets))
	}
	defer resp.Body.Close()
	metrics.ProviderRequest(req.URL.Host, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{URL: redactURL(req.URL.String(), secrets), StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// FetchJSON GETs rawURL and decodes the JSON body into out. On a non-2xx
// status the body is still decoded when possible, so callers can inspect
// provider error payloads, and the *StatusError is returned.
func FetchJSON(ctx context.Context, client *http.Client, rawURL string, out any, secrets ...string) error {
	body, err := Fetch(ctx, client, rawURL, secrets...)
	if body == nil {
		return err
	}
	if jerr := json.Unmarshal(body, out); jerr != nil {
		if err != nil {
			return err
		}
		return fmt.Errorf("parse response: %w", jerr)
	}
	return err
}

const redacted = "REDACTED"

// redactURL drops the query string and masks secrets in the rest of the
// URL, such as a key carried as a path segment.
func redactURL(rawURL string, secrets []string) string {
	out := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		u.User = nil
		out = u.String()
	} else if i := strings.IndexByte(out, '?'); i >= 0 {
		out = out[:i]
	}
	return maskSecrets(out, secrets)
}

func maskSecrets(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, redacted)
		if esc := url.PathEscape(secret); esc != secret {
			s = strings.ReplaceAll(s, esc, redacted)
		}
		if esc := url.QueryEscape(secret); esc != secret {
			s = strings.ReplaceAll(s, esc, redacted)
		}
	}
	return s
}

// scrubError rewrites the URL inside a *url.Error. Other errors are
// returned unchanged unless their text carries a secret.
func scrubError(err error, secrets []string) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redactURL(ue.URL, secrets)
		if ue.Err != nil && maskSecrets(ue.Err.Error(), secrets) != ue.Err.Error() {
			ue.Err = errors.New(maskSecrets(ue.Err.Error(), secrets))
		}
		return err
	}
	if msg := maskSecrets(err.Error(), secrets); msg != err.Error() {
		return errors.New(msg)
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
