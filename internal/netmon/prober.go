package netmon

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Prober answers whether the remote service is reachable right now.
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) bool

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context) bool {
	return f(ctx)
}

// HTTPProber issues a HEAD request against a URL. Any HTTP response counts as
// reachable; when the request fails it falls back to a plain TCP dial of the
// same host so servers that reject HEAD still register as online.
type HTTPProber struct {
	url    string
	client *http.Client
	dialer *net.Dialer
}

// ProberOption customizes an HTTPProber.
type ProberOption func(*HTTPProber)

// WithHTTPClient overrides the client used for HEAD requests.
func WithHTTPClient(client *http.Client) ProberOption {
	return func(p *HTTPProber) {
		if client != nil {
			p.client = client
		}
	}
}

// NewHTTPProber constructs a prober for target.
func NewHTTPProber(target string, opts ...ProberOption) *HTTPProber {
	p := &HTTPProber{
		url: strings.TrimSpace(target),
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		dialer: &net.Dialer{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	if p == nil || p.url == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err == nil {
		_ = resp.Body.Close()
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	return p.dial(ctx)
}

func (p *HTTPProber) dial(ctx context.Context) bool {
	address := dialAddress(p.url)
	if address == "" {
		return false
	}
	conn, err := p.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return false
	}
	_ = conn.SetDeadline(time.Now())
	_ = conn.Close()
	return true
}

func dialAddress(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	port := parsed.Port()
	if port == "" {
		switch parsed.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(parsed.Hostname(), port)
}
