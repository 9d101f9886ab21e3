package speedtest

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SkylerRankin/netquality/internal/config"
	"github.com/pkg/errors"
)

const (
	connectTimeout = 10 * time.Second
	keepAlive      = 30 * time.Second
)

// newHTTPClient builds the client shared by every phase of a run. Setting a
// custom dialer without ForceAttemptHTTP2 keeps the transport on HTTP/1.1, so
// parallel transfers use separate TCP connections instead of h2 streams.
func newHTTPClient(cfg config.Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: keepAlive,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConnsPerHost: cfg.ParallelConnections,
		TLSHandshakeTimeout: connectTimeout,
		DisableCompression:  true,
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// withBytes sets the bytes query parameter used by the download endpoint.
func withBytes(base string, n int64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse url %q", base)
	}
	q := u.Query()
	q.Set("bytes", strconv.FormatInt(n, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
