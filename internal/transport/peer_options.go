package transport

import (
	"net/http"
	"time"
)

type peerOption func(*Peer)

// WithTimeout bounds each outbound request.
func WithTimeout(timeout time.Duration) peerOption {
	return func(p *Peer) {
		p.timeout = timeout
	}
}

// WithInboundBuffer sets how many received messages may wait for the reader
// before new ones are dropped.
func WithInboundBuffer(n int) peerOption {
	return func(p *Peer) {
		p.inboundCap = n
	}
}

// WithClient replaces the HTTP client used for outbound requests.
func WithClient(c *http.Client) peerOption {
	return func(p *Peer) {
		p.client = c
	}
}
