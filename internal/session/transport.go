package session

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	utls "github.com/refraction-networking/utls"
)

var fingerprints = map[string]utls.ClientHelloID{
	"chrome":  utls.HelloChrome_Auto,
	"firefox": utls.HelloFirefox_Auto,
	"safari":  utls.HelloSafari_Auto,
	"edge":    utls.HelloEdge_Auto,
	"ios":     utls.HelloIOS_Auto,
}

// helloID resolves a fingerprint name. "none" and "" yield the zero ID, which
// leaves TLS to the standard library.
func helloID(name string) (utls.ClientHelloID, error) {
	if name == "" || name == "none" {
		return utls.ClientHelloID{}, nil
	}
	id, found := fingerprints[name]
	if !found {
		return utls.ClientHelloID{}, eris.Errorf("session: unknown fingerprint %q", name)
	}
	return id, nil
}

// Client returns an HTTP client that carries the context's TLS fingerprint
// and proxy selection. Headers and cookies are applied per request by Apply.
func (c *Context) Client(timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               c.ProxyFunc(),
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
	}

	id, err := helloID(c.profile.Fingerprint)
	if err != nil {
		return nil, err
	}
	// Proxied HTTPS goes through CONNECT and the standard TLS stack.
	if id.Client != "" {
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialFingerprinted(ctx, network, addr, id)
		}
		transport.ForceAttemptHTTP2 = false
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// dialFingerprinted opens a TLS connection whose ClientHello mimics a browser.
// ALPN is pinned to http/1.1 since http.Transport cannot speak h2 over a
// utls connection.
func dialFingerprinted(ctx context.Context, network, addr string, id utls.ClientHelloID) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "session: build tls spec")
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "session: apply tls spec")
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "session: tls handshake")
	}
	return tlsConn, nil
}
