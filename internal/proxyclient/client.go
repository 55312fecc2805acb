// Package proxyclient builds *http.Client values with per-purpose timeout
// profiles (TLS handshake, response header, idle connection) and optional
// proxy dialing, instead of one global client shared by every caller.
// Used by the Crowdin remote translation client (internal/crowdin).
package proxyclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyConfig describes an optional forward proxy the client dials
// through. A nil *ProxyConfig means no proxy.
type ProxyConfig struct {
	Type     string // "http" | "socks5"
	Address  string
	Username string
	Password string
}

// TimeoutConfig holds the per-purpose timeout profile for one client.
type TimeoutConfig struct {
	TLSHandshake   time.Duration
	ResponseHeader time.Duration
	IdleConnection time.Duration
	// OverallRequest bounds the whole request/response cycle including
	// body streaming. Zero means no client-wide timeout.
	OverallRequest time.Duration
}

func (tc TimeoutConfig) withDefaults() TimeoutConfig {
	if tc.TLSHandshake == 0 {
		tc.TLSHandshake = 10 * time.Second
	}
	if tc.ResponseHeader == 0 {
		tc.ResponseHeader = 60 * time.Second
	}
	if tc.IdleConnection == 0 {
		tc.IdleConnection = 90 * time.Second
	}
	return tc
}

// ProxyDialer is the minimal dial interface both proxy implementations
// satisfy, so http.Transport.DialContext can be set uniformly.
type ProxyDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// New builds an *http.Client honoring timeouts and, if proxyCfg is
// non-nil, dialing every connection through the configured proxy.
func New(proxyCfg *ProxyConfig, timeouts TimeoutConfig) (*http.Client, error) {
	timeouts = timeouts.withDefaults()

	transport := &http.Transport{
		TLSHandshakeTimeout:   timeouts.TLSHandshake,
		ResponseHeaderTimeout: timeouts.ResponseHeader,
		IdleConnTimeout:       timeouts.IdleConnection,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: false},
	}

	if proxyCfg != nil {
		dialer, err := createProxyDialer(proxyCfg)
		if err != nil {
			return nil, fmt.Errorf("creating proxy dialer: %w", err)
		}
		transport.DialContext = dialer.DialContext
	}

	client := &http.Client{Transport: transport}
	if timeouts.OverallRequest > 0 {
		client.Timeout = timeouts.OverallRequest
	}
	return client, nil
}

func createProxyDialer(cfg *ProxyConfig) (ProxyDialer, error) {
	switch cfg.Type {
	case "http":
		return newHTTPProxyDialer(cfg), nil
	case "socks5":
		return newSOCKS5ProxyDialer(cfg)
	default:
		return nil, fmt.Errorf("unsupported proxy type: %s", cfg.Type)
	}
}

func newHTTPProxyDialer(cfg *ProxyConfig) ProxyDialer {
	proxyURL := &url.URL{Scheme: "http", Host: cfg.Address}
	if cfg.Username != "" && cfg.Password != "" {
		proxyURL.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return &httpProxyDialer{
		proxyURL: proxyURL,
		dialer:   &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
	}
}

func newSOCKS5ProxyDialer(cfg *ProxyConfig) (ProxyDialer, error) {
	var auth *proxy.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = &proxy.Auth{User: cfg.Username, Password: cfg.Password}
	}
	dialer, err := proxy.SOCKS5("tcp", cfg.Address, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
	}
	if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
		return &socks5ProxyDialer{contextDialer: ctxDialer}, nil
	}
	return &socks5ProxyDialer{dialer: dialer}, nil
}

type httpProxyDialer struct {
	proxyURL *url.URL
	dialer   *net.Dialer
}

func (h *httpProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	proxyConn, err := h.dialer.DialContext(ctx, "tcp", h.proxyURL.Host)
	if err != nil {
		return nil, fmt.Errorf("connecting to HTTP proxy %s: %w", h.proxyURL.Host, err)
	}

	connectReq := &http.Request{
		Method: "CONNECT",
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}
	if h.proxyURL.User != nil {
		connectReq.Header.Set("Proxy-Authorization", "Basic "+basicAuth(h.proxyURL.User.String()))
	}

	if err := connectReq.Write(proxyConn); err != nil {
		proxyConn.Close()
		return nil, fmt.Errorf("sending CONNECT request: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(proxyConn), connectReq)
	if err != nil {
		proxyConn.Close()
		return nil, fmt.Errorf("reading CONNECT response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		proxyConn.Close()
		return nil, fmt.Errorf("proxy returned non-200 status: %s", resp.Status)
	}
	return proxyConn, nil
}

type socks5ProxyDialer struct {
	contextDialer proxy.ContextDialer
	dialer        proxy.Dialer
}

func (s *socks5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if s.contextDialer != nil {
		return s.contextDialer.DialContext(ctx, network, address)
	}

	type result struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		conn, err := s.dialer.Dial(network, address)
		resultCh <- result{conn: conn, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.conn, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func basicAuth(userInfo string) string {
	return base64.StdEncoding.EncodeToString([]byte(userInfo))
}
