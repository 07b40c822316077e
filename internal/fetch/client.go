// Package fetch wraps net/http with the session configuration surface of the
// downloader: basic auth, client TLS certificates, cookies, extra headers and
// query parameters, redirect limits and proxying. A Client is configured once
// and applies the same settings to every request, the way a requests-style
// HTTP session would.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Options configures a Client. The zero value is a plain client with Go's
// default transport behavior.
type Options struct {
	// Username and Password enable HTTP basic auth when Username is non-empty.
	Username string
	Password string

	// CertFile is a PEM file holding both the client certificate and its
	// private key, presented during the TLS handshake when set.
	CertFile string

	// Cookies and Headers are added to every request.
	Cookies map[string]string
	Headers map[string]string

	// Params are extra query parameters appended to every request URL.
	Params map[string]string

	// MaxRedirects caps redirect following. Negative means the http.Client
	// default (10); zero disables redirects entirely.
	MaxRedirects int

	// Insecure disables TLS certificate verification.
	Insecure bool

	// Proxy routes all requests through the given proxy URL. Empty means
	// the environment proxy settings apply.
	Proxy string

	// UserAgent overrides the User-Agent header when non-empty.
	UserAgent string
}

// Client issues GET requests with a fixed session configuration.
type Client struct {
	httpClient *http.Client
	opts       Options
}

// NewClient builds a Client from opts. Configuration problems (unreadable
// certificate, unparsable proxy URL) are reported here, before any request
// is made.
func NewClient(opts Options) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.Insecure || opts.CertFile != "" {
		tlsConfig := &tls.Config{InsecureSkipVerify: opts.Insecure}
		if opts.CertFile != "" {
			cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.CertFile)
			if err != nil {
				return nil, fmt.Errorf("load client certificate %s: %w", opts.CertFile, err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
		transport.TLSClientConfig = tlsConfig
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy URL %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{Transport: transport}
	if opts.MaxRedirects >= 0 {
		limit := opts.MaxRedirects
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) > limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		}
	}

	return &Client{httpClient: client, opts: opts}, nil
}

// Get fetches url and returns the response body. Any non-2xx status yields a
// *StatusError; transport failures come back as the wrapped *url.Error from
// net/http. No retries: the caller decides whether a failure is fatal.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	if len(c.opts.Params) > 0 {
		q := req.URL.Query()
		for k, v := range c.opts.Params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	for k, v := range c.opts.Cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}
	if c.opts.Username != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	return body, nil
}
