// Package safehttp provides an HTTP transport that refuses to connect to
// private, loopback or link-local addresses. Caption track URLs are taken
// from scraped page content, so the transcript client uses it.
package safehttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const dialTimeout = 5 * time.Second

// ErrDenied wraps every refused connection.
var ErrDenied = errors.New("safehttp: destination denied")

// Denied reports whether ip is an address the transport refuses.
func Denied(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// DialContext dials addr and closes the connection again if the peer turns
// out to be a denied address. The check runs on the connected address so
// DNS answers cannot slip past it.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("%w: cannot parse remote IP for %q", ErrDenied, addr)
	}

	if Denied(ip) {
		conn.Close()
		return nil, fmt.Errorf("%w: private address %s", ErrDenied, ip)
	}

	return conn, nil
}

// NewTransport clones http.DefaultTransport with DialContext. Proxies are
// disabled, as the proxy address would be checked instead of the target.
func NewTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = DialContext
	return t
}
