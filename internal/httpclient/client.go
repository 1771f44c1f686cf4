// Package httpclient builds the two HTTP client flavors the engine
// needs: a lenient probe client for metadata requests and an
// aggressive worker client for chunk streams.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"
)

// GenericUserAgent is sent on every request so servers see an
// ordinary browser rather than a bare Go client.
const GenericUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36"

// workerTimeout is the aggressive 5-second connect and read timeout:
// a correctness lever that converts stalled sockets into prompt errors
// the engine can re-queue instead of a worker hanging indefinitely.
const workerTimeout = 5 * time.Second

// NewProbeClient returns the lenient client used for HEAD requests and
// the zero-length GET fallback: default connect/read timeouts, a
// browser-like user agent.
func NewProbeClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: 30 * time.Second,
	}
}

// NewWorkerClient returns the aggressive client used by chunk workers:
// the same user agent plus 5-second connect and read timeouts, so a
// stalled socket fails fast. maxConcurrent sizes the per-host idle
// pool to the worker count so connection reuse doesn't throttle
// parallelism. The client has no overall request timeout — a large
// chunk is allowed to take as long as it keeps making read progress.
func NewWorkerClient(maxConcurrent int) *http.Client {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	dialer := &net.Dialer{Timeout: workerTimeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				conn, err := dialer.DialContext(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				return &readDeadlineConn{Conn: conn, timeout: workerTimeout}, nil
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   maxConcurrent,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   workerTimeout,
			ExpectContinueTimeout: 1 * time.Second,
			DisableCompression:    true, // range requests want raw bytes
		},
	}
}

// readDeadlineConn resets a read deadline before every Read, turning a
// fixed read timeout into a rolling idle timeout: a socket that keeps
// delivering bytes never trips it, one that stalls does within
// workerTimeout.
type readDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *readDeadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}
