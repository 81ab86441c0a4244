// Command healthcheck probes the local server's /healthz and exits non-zero
// when it is unreachable or reports the database down.
//
// Intended for Docker HEALTHCHECK:
//
//	HEALTHCHECK CMD ["/healthcheck"]
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	defaultPort    = 8080
	healthEndpoint = "/healthz"
	requestTimeout = 2 * time.Second

	// exit codes
	codeRequestFailed = 2
	codeUnhealthy     = 3
	codeDecodeError   = 4
)

type healthResp struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func main() {
	url := os.Getenv("HEALTHCHECK_URL")
	if url == "" {
		url = fmt.Sprintf("http://localhost:%d%s", port(), healthEndpoint)
	}

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Get(url)
	if err != nil {
		fail(codeRequestFailed, "request failed: %v", err)
	}
	defer resp.Body.Close()

	var h healthResp
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		fail(codeDecodeError, "decode error (HTTP %d): %v", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || h.Status != "ok" {
		fail(codeUnhealthy, "unhealthy (HTTP %d, status %q): %s", resp.StatusCode, h.Status, h.Error)
	}

	log.Printf("healthy: %s", url)
}

// port reads APP_PORT, falling back to defaultPort.
func port() int {
	if p, err := strconv.Atoi(os.Getenv("APP_PORT")); err == nil && p > 0 && p <= 65535 {
		return p
	}
	return defaultPort
}

func fail(code int, format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(code)
}
