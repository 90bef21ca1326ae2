package imageredact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gonkalabs/pii-masker-go/internal/apperr"
)

// Fetcher downloads images over HTTP(S) with a bounded timeout and size.
type Fetcher struct {
	http     *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher. Responses larger than maxBytes are rejected.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxBytes: maxBytes,
	}
}

// Fetch downloads rawURL. Only http and https are accepted. A non-2xx
// status or an oversized body is a Decode error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.Validationf("image_url must be an absolute http or https URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "fetch_image", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.Decode, "fetch_image", fmt.Errorf("fetch %s: %w", u.Redacted(), err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.New(apperr.Decode, "fetch_image", fmt.Errorf("fetch %s: status %d", u.Redacted(), resp.StatusCode))
	}
	data, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, apperr.New(apperr.Decode, "fetch_image", err)
	}
	return data, nil
}

// readLimited reads r fully, failing when it holds more than max bytes.
// max <= 0 disables the limit.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("image exceeds %d bytes", max)
	}
	return data, nil
}
