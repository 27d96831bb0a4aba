// Command healthcheck probes a local gatecheck server for container health
// checks. It exits 0 only when the server reports status "ok".
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	httphandler "github.com/ericfisherdev/gatecheck/internal/adapter/driving/http"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	if err := probe(context.Background(), &http.Client{Timeout: 2 * time.Second}, normalizeAddr(os.Getenv("GATECHECK_LISTEN_ADDR"))); err != nil {
		fmt.Fprintln(os.Stderr, "unhealthy:", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, client *http.Client, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/v1/health", addr), nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var report httphandler.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("decode health report (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || report.Status != "ok" {
		return fmt.Errorf("status %d, backend %s: %s", resp.StatusCode, report.Backend, report.Error)
	}
	return nil
}

// normalizeAddr points the probe at loopback when the server binds every
// interface, since the probe runs inside the same container.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
