package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/jobhub/internal/domain"
)

const (
	maxBodyBytes  = 16 << 20
	maxErrorBytes = 4096
	maxErrorText  = 256
	userAgent     = "jobhub/1.0 (+https://github.com/MrSnakeDoc/jobhub)"
)

// UpstreamError is a non-2xx answer other than 404.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

// Error keeps only the head of the body; the full text stays in Body.
func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream returned %d", e.Provider, e.Status)
	}
	body := e.Body
	if len(body) > maxErrorText {
		body = body[:maxErrorText] + "..."
	}
	return fmt.Sprintf("%s: upstream returned %d: %s", e.Provider, e.Status, body)
}

// GetJSON issues a GET and decodes a JSON body into out.
// 404 maps to domain.ErrNotFound. Errors never carry the request URL, which
// may hold credentials in its query.
func GetJSON(ctx context.Context, client *http.Client, provider, target string, headers map[string]string, out any) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, stripURL(err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", provider, stripURL(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return &UpstreamError{
			Provider: provider,
			Status:   resp.StatusCode,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
