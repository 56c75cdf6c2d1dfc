package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	httphandler "github.com/ericfisherdev/vaultdesk/internal/adapter/driving/http"
)

const vaultReady = "ready"

func main() {
	os.Exit(check())
}

// check calls the health endpoint. With VAULTDESK_HEALTHCHECK_REQUIRE_KEY set
// to true, a vault running in list-only mode also counts as unhealthy.
func check() int {
	addr := normalizeAddr(os.Getenv("VAULTDESK_LISTEN_ADDR"))
	requireKey, _ := strconv.ParseBool(os.Getenv("VAULTDESK_HEALTHCHECK_REQUIRE_KEY"))

	client := &http.Client{Timeout: 2 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/v1/health", addr), nil)
	if err != nil {
		return 1
	}

	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 1
	}

	if !requireKey {
		return 0
	}

	var health httphandler.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return 1
	}
	if health.Vault != vaultReady {
		return 1
	}

	return 0
}

// normalizeAddr ensures the healthcheck connects to loopback rather than the
// bind-all address. Docker containers bind 0.0.0.0 but the healthcheck runs
// inside the same container, so loopback is reachable and more correct.
func normalizeAddr(raw string) string {
	if raw == "" {
		return "127.0.0.1:8080"
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return "127.0.0.1:8080"
	}

	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
