package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"market-pulse/src/helpers"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

const maxBodyBytes = 4 << 20

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Client       *http.Client
	Logger       *logger.Logger

	mu sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	if log == nil {
		log = logger.NewLogger(cfg, "Network")
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(cfg.Network.Proxies, cfg.Network.UserAgent),
		Logger:       log,
	}
	nm.Client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

// createClient builds a client bound to the current proxy. The caller's
// context usually carries a tighter deadline than the client timeout.
func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	client := &http.Client{Transport: transport}
	if nm.Config != nil {
		client.Timeout = nm.Config.Upstream.RequestTimeout.Duration()
	}
	return client
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	client := nm.createClient()

	nm.mu.Lock()
	nm.Client = client
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) client() *http.Client {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.Client
}

// -----------------------------------------------------------------------------

// Get performs one GET request. Retries are left to the caller's gate so the
// upstream never sees more than one call per permitted interval.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewFetchError(helpers.KindUpstreamError, 0, "invalid url", err)
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, helpers.NewFetchError(helpers.KindUpstreamError, 0, "build request", err)
	}

	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	req.Header.Set("Accept", "application/json")
	if nm.Config != nil && nm.Config.Upstream.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", nm.Config.Upstream.APIKey)
	}

	start := time.Now()
	resp, err := nm.client().Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, helpers.NewFetchError(helpers.KindTimeout, 0,
				fmt.Sprintf("request timed out after %s", time.Since(start).Round(time.Millisecond)),
				pkgerrors.Wrap(err, "GET "+reqURL.Path))
		}
		return nil, helpers.NewFetchError(helpers.KindUpstreamError, 0, "request failed",
			pkgerrors.Wrap(err, "GET "+reqURL.Path))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		nm.Logger.Warning("Request rate limited (%d). Rotating proxy.", resp.StatusCode)
		nm.rotateProxy()
		return nil, helpers.NewFetchError(helpers.KindRateLimited, resp.StatusCode, "rate limited by upstream", nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		nm.Logger.Debug("Bad status %d from %s", resp.StatusCode, reqURL.Path)
		return nil, helpers.NewFetchError(helpers.KindUpstreamError, resp.StatusCode,
			fmt.Sprintf("bad status: %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, helpers.NewFetchError(helpers.KindTimeout, resp.StatusCode, "reading body timed out", err)
		}
		return nil, helpers.NewFetchError(helpers.KindUpstreamError, resp.StatusCode, "read body", err)
	}

	return body, nil
}

// -----------------------------------------------------------------------------

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
