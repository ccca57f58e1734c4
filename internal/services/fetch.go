package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const maxFetchBytes = 5 * 1024 * 1024

var errTooLarge = errors.New("response exceeds size limit")

// FetchError describes a failed upstream fetch. Status is 0 when no response was received.
type FetchError struct {
	URL    string
	Status int
	Cause  error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Status != 0 && e.Cause == nil {
		return fmt.Sprintf("fetch %s: upstream status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Timeout reports whether the fetch failed because a deadline passed.
func (e *FetchError) Timeout() bool {
	var ne net.Error
	if errors.As(e.Cause, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(e.Cause, context.DeadlineExceeded)
}

// NewHTTPClient builds the client used for outbound fetches. proxyURL may be empty,
// socks5://host:port or http(s)://host:port.
func NewHTTPClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(u, &net.Dialer{Timeout: 10 * time.Second})
			if err != nil {
				return nil, fmt.Errorf("socks dialer: %w", err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, errors.New("socks dialer does not support contexts")
			}
			transport.Proxy = nil
			transport.DialContext = cd.DialContext
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// fetchText GETs rawURL and returns the body. Any non-2xx status is a *FetchError.
func fetchText(ctx context.Context, client *http.Client, rawURL, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Cause: err}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return "", &FetchError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return "", &FetchError{URL: rawURL, Status: resp.StatusCode, Cause: err}
	}
	if len(body) > maxFetchBytes {
		return "", &FetchError{URL: rawURL, Status: resp.StatusCode, Cause: errTooLarge}
	}
	return string(body), nil
}
