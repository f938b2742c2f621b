package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Converter turns a rendered HTML page into a binary format.
type Converter interface {
	Convert(ctx context.Context, html []byte, format string, opts Options) ([]byte, error)
}

// HTTPConverter posts pages to an HTML conversion service at
// <endpoint>/<format> and returns the response body.
type HTTPConverter struct {
	endpoint string
	client   *http.Client
}

func NewHTTPConverter(endpoint string, timeout time.Duration) *HTTPConverter {
	return &HTTPConverter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPConverter) Convert(ctx context.Context, html []byte, format string, opts Options) ([]byte, error) {
	target, err := url.JoinPath(c.endpoint, format)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if opts.PageSize != "" {
		query.Set("page_size", opts.PageSize)
	}
	if opts.Width > 0 {
		query.Set("width", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		query.Set("height", strconv.Itoa(opts.Height))
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	req.Header.Set("Accept", MimeType(format))

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode/100 != 2 {
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, fmt.Errorf("converter returned %s: %s", res.Status, bytes.TrimSpace(body))
	}

	return body, nil
}
