package cleanup

import (
	"net"
	"net/http"
	"time"
)

// newAttemptClient returns a client that dials a fresh connection for every
// request. connectTimeout bounds the dial and requestTimeout the whole call.
func newAttemptClient(connectTimeout, requestTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
		DisableKeepAlives:   true,
	}
	return &http.Client{Transport: tr, Timeout: requestTimeout}
}
