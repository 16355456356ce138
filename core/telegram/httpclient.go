package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/busly/routafare/core/telegram/netutil"
)

const (
	dialTimeout        = 5 * time.Second
	tlsHandshakeLimit  = 5 * time.Second
	idleConnLifetime   = 30 * time.Second
	responseHeaderWait = 5 * time.Second
	overallTimeout     = 30 * time.Second
	keepAlivePeriod    = 30 * time.Second
	transportRetries   = 3
	transportBackoff   = 2 * time.Second
)

// BuildHTTPClient returns the client handed to telebot for Bot API calls.
// Transient dial and timeout failures retry under the overall client
// timeout, so a send survives a brief network blip without surfacing.
func BuildHTTPClient() *http.Client {
	return &http.Client{
		Timeout: overallTimeout,
		Transport: &retryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlivePeriod}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       idleConnLifetime,
				TLSHandshakeTimeout:   tlsHandshakeLimit,
				ResponseHeaderTimeout: responseHeaderWait,
				ExpectContinueTimeout: time.Second,
			},
			maxRetries: transportRetries,
			backoff:    transportBackoff,
		},
	}
}

// retryTransport retries transport-level failures with linear backoff.
// Requests whose body cannot be replayed are sent once only.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	var lastErr error
	total := t.maxRetries + 1
	for attempt := 1; attempt <= total; attempt++ {
		curr := req
		if attempt > 1 {
			clone, ok := replayable(req)
			if !ok {
				break
			}
			curr = clone
		}

		resp, err := base.RoundTrip(curr)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == total {
			break
		}
		if err := sleepBackoff(req, t.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// replayable clones req with a fresh body when the body can be re-read.
func replayable(req *http.Request) (*http.Request, bool) {
	clone := req.Clone(req.Context())
	if req.Body == nil {
		return clone, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	clone.Body = body
	return clone, true
}

func sleepBackoff(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
