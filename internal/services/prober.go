package services

import (
	"context"
	"net"
	"strconv"
	"time"

	"cfsub/internal/models"
)

// Prober measures TCP connect latency to host:Port.
type Prober struct {
	Port    int
	Timeout time.Duration
}

func NewProber(port int, timeout time.Duration) *Prober {
	if port <= 0 {
		port = 443
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Prober{Port: port, Timeout: timeout}
}

// Probe returns the connect time in milliseconds, or models.UnreachableLatency
// when the connection fails or does not complete within Timeout.
func (p *Prober) Probe(ctx context.Context, host string) int {
	start := time.Now()
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(p.Port)))
	if err != nil {
		probeUnreachable.Inc()
		return models.UnreachableLatency
	}
	ms := int(time.Since(start).Milliseconds())
	_ = conn.Close()
	if ms >= models.UnreachableLatency {
		ms = models.UnreachableLatency - 1
	}
	probeLatency.Observe(float64(ms))
	return ms
}
