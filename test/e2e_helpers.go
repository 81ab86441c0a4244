//go:build e2e

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"infinitiflow/internal/config"
)

const (
	registerEndpoint = "/api/auth/register"
	loginEndpoint    = "/api/auth/login"
	logoutEndpoint   = "/api/auth/logout"
	refreshEndpoint  = "/api/auth/refresh-token"
	meEndpoint       = "/api/auth/me"
	usageEndpoint    = "/api/auth/usage"
	changePwEndpoint = "/api/auth/change-password"

	planEndpoint    = "/api/subscription/plan"
	contentEndpoint = "/api/content"
	streamEndpoint  = "/ws/account/stream"

	testPassword = "Passw0rd123"

	msgFailedToCloseResponseBody = "failed to close response body: %v"
)

// limitedWriter wraps an io.Writer and stops copying after limit bytes.
type limitedWriter struct {
	w     io.Writer
	limit int64
	n     int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.n >= lw.limit {
		lw.n += int64(len(p))
		return 0, io.ErrShortWrite
	}

	want := len(p)
	if remain := lw.limit - lw.n; int64(want) > remain {
		p = p[:remain]
	}

	n, err := lw.w.Write(p)
	lw.n += int64(n)
	if int64(want) > int64(n) && err == nil {
		err = io.ErrShortWrite
	}
	return n, err
}

// TestEnvironment is a running server backed by a throwaway MongoDB.
type TestEnvironment struct {
	BaseURL string
	Client  *http.Client
}

// randomPort asks the kernel for an unused TCP port.
func randomPort() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port), nil
}

// startMongoTC returns a MongoDB testcontainer as (uri, terminateFn, error)
func startMongoTC(ctx context.Context, t *testing.T) (string, func(), error) {
	t.Helper()
	t.Log("Starting MongoDB container")
	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:8.0",
			ExposedPorts: []string{"27017/tcp"},
			Env: map[string]string{
				"MONGO_INITDB_ROOT_USERNAME": "root",
				"MONGO_INITDB_ROOT_PASSWORD": "example",
				"MONGO_INITDB_DATABASE":      "e2e",
			},
			WaitingFor: wait.ForExec([]string{"mongosh", "--eval", "db.adminCommand('ping')"}).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", nil, err
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		return "", nil, err
	}

	port, err := mongoC.MappedPort(ctx, "27017")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		return "", nil, err
	}

	uri := fmt.Sprintf("mongodb://root:example@%s:%s/", host, port.Port())
	return uri, func() { _ = mongoC.Terminate(ctx) }, nil
}

// startServerWithEnv launches the server binary (or `go run`) against mongoURI.
func startServerWithEnv(ctx context.Context, t *testing.T, mongoURI string, extraEnv map[string]string) (string, *exec.Cmd, context.CancelFunc, *bytes.Buffer, error) {
	t.Helper()
	t.Log("Starting server")

	appPort, err := randomPort()
	if err != nil {
		return "", nil, nil, nil, err
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return "", nil, nil, nil, err
	}
	t.Cleanup(func() { _ = devNull.Close() })

	const maxStderrSize = 64 * 1024
	stderrBuf := &bytes.Buffer{}
	limitedStderr := &limitedWriter{w: stderrBuf, limit: maxStderrSize}

	srvCtx, srvCancel := context.WithCancel(ctx)

	bin := os.Getenv("BIN_SERVER")
	var cmd *exec.Cmd
	if bin != "" {
		cmd = exec.CommandContext(srvCtx, bin)
	} else {
		cmd = exec.CommandContext(srvCtx, "go", "run", "./cmd/server")
		cmd.Dir = "../"
	}

	// own process group so cleanup can signal `go run` and its child together
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	envVars := []string{
		"MONGO_URI=" + mongoURI,
		"MONGO_DB_NAME=e2e",
		"JWT_SECRET=test-e2e-access-secret-with-32-plus-characters",
		"JWT_REFRESH_SECRET=test-e2e-refresh-secret-with-32-plus-characters",
		"BCRYPT_SALT_ROUNDS=10",
		"SMTP_HOST=",
		"LOG_LEVEL=info",
		"REQUEST_LOGGING_ENABLED=false",
		"APP_PORT=" + appPort,
	}
	for key, value := range extraEnv {
		envVars = append(envVars, key+"="+value)
	}

	// later entries win, so the test values override the caller's environment
	cmd.Env = append(os.Environ(), envVars...)
	cmd.Stdout = devNull
	cmd.Stderr = limitedStderr

	t.Logf("Launching server on :%s (binary=%q)", appPort, bin)
	if err := cmd.Start(); err != nil {
		srvCancel()
		return "", nil, nil, nil, err
	}

	return "http://localhost:" + appPort, cmd, srvCancel, stderrBuf, nil
}

// waitHealthy polls /healthz until it answers 200 or timeout elapses.
func waitHealthy(baseURL string, timeout time.Duration) error {
	healthURL := baseURL + "/healthz"
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().UTC().Add(timeout)
	for {
		if time.Now().UTC().After(deadline) {
			return fmt.Errorf("server never responded on %s", healthURL)
		}

		resp, err := client.Get(healthURL)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// httpJSON performs an HTTP request with a JSON payload.
func httpJSON(method, url string, payload any, headers map[string]string) (*http.Response, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return client.Do(req)
}

// SetupTestEnvironment sets up the complete test environment
func SetupTestEnvironment(t *testing.T) *TestEnvironment {
	return SetupTestEnvironmentWithEnv(t, nil)
}

// SetupTestEnvironmentWithEnv starts MongoDB and the server with extraEnv applied.
func SetupTestEnvironmentWithEnv(t *testing.T, extraEnv map[string]string) *TestEnvironment {
	t.Helper()
	t.Log("Setting up test environment")
	config.ResetCache()
	t.Cleanup(config.ResetCache)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	mongoURI, mongoTerminate, err := startMongoTC(ctx, t)
	require.NoError(t, err)
	t.Cleanup(mongoTerminate)

	baseURL, cmd, srvCancel, stderrBuf, err := startServerWithEnv(ctx, t, mongoURI, extraEnv)
	require.NoError(t, err)

	t.Cleanup(func() {
		srvCancel()

		if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		}

		done := make(chan struct{})
		go func() {
			_ = cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			_ = cmd.Process.Kill()
			<-done
		}

		if stderrBuf.Len() > 0 {
			t.Logf("Server stderr output (%d bytes):\n%s", stderrBuf.Len(), stderrBuf.String())
		}
	})

	if err := waitHealthy(baseURL, 60*time.Second); err != nil {
		if stderrBuf.Len() > 0 {
			t.Logf("Server stderr output on health check failure (%d bytes):\n%s", stderrBuf.Len(), stderrBuf.String())
		}
		require.NoError(t, err, "server never responded on %s", baseURL)
	}

	return &TestEnvironment{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func registerPayload(email string) map[string]string {
	return map[string]string{
		"firstName": "Grace",
		"lastName":  "Hopper",
		"email":     email,
		"password":  testPassword,
	}
}

func loginPayload(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

// register creates an account and returns its access token.
func register(t *testing.T, env *TestEnvironment, email string) string {
	t.Helper()
	data := ExecuteHTTPJSONStep(t, HTTPJSONStep{
		Name:           "register " + email,
		Method:         http.MethodPost,
		URL:            registerEndpoint,
		Body:           registerPayload(email),
		ExpectedStatus: http.StatusCreated,
	}, env.BaseURL)
	return GetTokenFromResponse(t, data, "token")
}

func loginExpect(t *testing.T, c *http.Client, baseURL, email, password string, want int) {
	t.Helper()
	status, err := doJSONPost(t, c, baseURL+loginEndpoint, loginPayload(email, password))
	require.NoError(t, err)
	require.Equal(t, want, status)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSONPost(t *testing.T, c *http.Client, url string, body any) (int, error) {
	t.Helper()
	b, _ := json.Marshal(body)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Errorf(msgFailedToCloseResponseBody, err)
		}
	}()

	return resp.StatusCode, nil
}
