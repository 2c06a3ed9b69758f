package publish

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/PuerkitoBio/goquery"
	"github.com/dghubble/sling"
)

const (
	UserAgent = "extractposter/1.0"

	maxResponseBytes = 1 << 20
	maxDiagnoseBody  = 300
)

// NewHTTPClient returns the client every adapter builds on. Uploads can be
// large, hence the generous timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 5,
		},
	}
}

// HTTPError is a non-2xx answer from a service.
type HTTPError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Unauthorized reports whether the service rejected the credentials.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsUnauthorized reports whether err carries a 401 or 403 answer.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Unauthorized()
}

// Receive builds the request described by s, sends it with client and decodes a
// 2xx JSON body into v. Any other status becomes an *HTTPError.
func Receive(ctx context.Context, client *http.Client, s *sling.Sling, endpoint string, v interface{}) error {
	req, err := s.Set("User-Agent", UserAgent).Set("Accept", "application/json").Request()
	if err != nil {
		return errors.Wrapf(err, "%s: cannot build request", endpoint)
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "%s: request failed", endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrapf(err, "%s: cannot read response", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.WithStack(&HTTPError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    diagnose(resp, body),
		})
	}
	if v == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "%s: cannot decode response", endpoint)
	}
	return nil
}

// diagnose turns an error body into one readable line. It knows the error
// shapes of the services we talk to and falls back to the page title for HTML
// answers from proxies, then to the raw body.
func diagnose(resp *http.Response, body []byte) string {
	var xrpc struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		// mastodon
		Description string `json:"error_description"`
		// twitter v1.1
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
		// twitter v2
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &xrpc) == nil {
		switch {
		case len(xrpc.Errors) > 0:
			return fmt.Sprintf("code %d: %s", xrpc.Errors[0].Code, xrpc.Errors[0].Message)
		case xrpc.Title != "":
			return strings.TrimSpace(xrpc.Title + ": " + xrpc.Detail)
		case xrpc.Error != "" && xrpc.Message != "":
			return xrpc.Error + ": " + xrpc.Message
		case xrpc.Error != "" && xrpc.Description != "":
			return xrpc.Error + ": " + xrpc.Description
		case xrpc.Error != "":
			return xrpc.Error
		}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "html") || bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				return title
			}
		}
	}

	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return http.StatusText(resp.StatusCode)
	}
	if len(raw) > maxDiagnoseBody {
		raw = raw[:maxDiagnoseBody] + "…"
	}
	return raw
}
