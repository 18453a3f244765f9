package host

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/slipwayhq/slipway/permission"
)

// response mirrors the guest-visible shape of a completed HTTP
// exchange, per spec.md section 4.5: fetch never throws on a non-2xx
// status, it reports the response as-is and leaves the guest to
// decide what counts as failure.
type response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// NewHTTPClient builds the *http.Client used for fetch_text/bin,
// with HTTP/2 support configured per spec.md section 6's host ABI
// description ("performs HTTP 1.1/2").
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{TLSClientConfig: &tls.Config{}}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func (h *Host) FetchText(ctx context.Context, url string, opts json.RawMessage) (json.RawMessage, error) {
	return h.fetch(ctx, url, opts, false)
}

func (h *Host) FetchBin(ctx context.Context, url string, opts json.RawMessage) (json.RawMessage, error) {
	return h.fetch(ctx, url, opts, true)
}

func (h *Host) fetch(ctx context.Context, url string, opts json.RawMessage, binary bool) (json.RawMessage, error) {
	if err := h.authorize(permission.Capability{Kind: permission.KindHTTP, URL: url}); err != nil {
		return nil, err
	}

	method := http.MethodGet
	var fetchOpts struct {
		Method string            `json:"method"`
		Header map[string]string `json:"headers"`
	}
	if len(opts) > 0 {
		if err := json.Unmarshal(opts, &fetchOpts); err == nil && fetchOpts.Method != "" {
			method = fetchOpts.Method
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range fetchOpts.Header {
		req.Header.Set(k, v)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	bodyStr := string(body)
	if binary {
		bodyStr = h.EncodeBin(body)
	}

	return json.Marshal(response{Status: resp.StatusCode, Headers: headers, Body: bodyStr})
}
