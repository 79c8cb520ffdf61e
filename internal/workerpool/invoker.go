package workerpool

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// BodyInvoker executes an event's opaque body. SPEC_FULL.md keeps the
// storage-engine/stored-routine boundary spec.md draws: the queue and
// the driver never interpret domain.EventRecord.Body, they hand it to an
// invoker and look only at the outcome.
type BodyInvoker interface {
	Invoke(ctx context.Context, body string) error
}

// HTTPInvoker is the standing-in implementation: it treats Body as a
// target URL and fires a POST at it, the same request/response shape as
// a stored routine call across a process boundary.
type HTTPInvoker struct {
	client *http.Client
}

// NewHTTPInvoker builds an invoker with sane connection-pool defaults.
func NewHTTPInvoker() *HTTPInvoker {
	return &HTTPInvoker{
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

func (h *HTTPInvoker) Invoke(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, body, strings.NewReader(""))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("invoke body: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("body invocation returned status %d", resp.StatusCode)
	}
	return nil
}
