package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"actionbroker/internal/app"
	"actionbroker/internal/common"
	"actionbroker/internal/config"
	"actionbroker/internal/server"
)

// integrationSecret signs the session tokens the test environment accepts.
const integrationSecret = "integration-test-secret-minimum-32"

// BrokerEnv provides a containerized host application for end-to-end broker
// tests. Only the stub host app runs in Docker — the broker's own Go code is
// exercised directly in the test process through the full handler chain.
//
// The host app is go-httpbin: it echoes method, URL, headers, and JSON body
// for any request under /anything/ and returns the requested code under
// /status/{code}, which is exactly what forwarding assertions need.
type BrokerEnv struct {
	t       *testing.T
	hostApp testcontainers.Container
	ctx     context.Context
	cancel  context.CancelFunc
	hostURL string
	handler http.Handler
	app     *app.App
	token   string
}

// NewBrokerEnv starts the host app container and wires a broker against it.
func NewBrokerEnv(t *testing.T) *BrokerEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	hostApp, err := testcontainers.Run(ctx, "mccutchen/go-httpbin:v2",
		testcontainers.WithExposedPorts("8080/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/status/200").WithPort("8080/tcp").WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		cancel()
		t.Fatalf("failed to start host app container: %v", err)
	}

	mappedPort, err := hostApp.MappedPort(ctx, "8080/tcp")
	if err != nil {
		hostApp.Terminate(ctx)
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := hostApp.Host(ctx)
	if err != nil {
		hostApp.Terminate(ctx)
		cancel()
		t.Fatalf("failed to get host: %v", err)
	}
	hostURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cfg := config.NewDefaultConfig()
	cfg.HostApp.URL = hostURL
	cfg.HostApp.PublicPrefix = "/" // go-httpbin's surface is not namespaced under /api
	cfg.HostApp.TimeoutSeconds = 30
	cfg.Discovery.RoutesRoot = writeHostRouteTree(t)
	cfg.Discovery.BasePath = ""
	cfg.Discovery.TTLSeconds = 300
	cfg.Auth.JWTSecret = integrationSecret

	application, err := app.New(cfg, common.NewSilentLogger())
	if err != nil {
		hostApp.Terminate(ctx)
		cancel()
		t.Fatalf("failed to create application: %v", err)
	}

	env := &BrokerEnv{
		t:       t,
		hostApp: hostApp,
		ctx:     ctx,
		cancel:  cancel,
		hostURL: hostURL,
		handler: server.New(application).Handler(),
		app:     application,
	}
	env.token = signToken(t, "integration-user")

	t.Logf("host app ready: %s", hostURL)
	return env
}

// Cleanup tears down the container and the application.
func (e *BrokerEnv) Cleanup() {
	if e == nil {
		return
	}

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cleanupCancel()

	if e.app != nil {
		e.app.Close()
	}
	if e.hostApp != nil {
		e.hostApp.Terminate(cleanupCtx)
	}
	if e.cancel != nil {
		e.cancel()
	}
}

// do sends an authenticated JSON request through the full handler chain.
func (e *BrokerEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// execute posts one payload to the execute endpoint.
func (e *BrokerEnv) execute(toolName string, input map[string]interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.do("POST", "/api/assistant/execute", map[string]interface{}{
		"toolName": toolName,
		"input":    input,
	})
}

// writeHostRouteTree lays out route definitions mirroring the go-httpbin
// surface the tests call.
func writeHostRouteTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"anything/companies/route.ts": `/**
 * Companies collection.
 */

/**
 * List companies.
 */
export async function GET(request: Request) {}

/**
 * Create a company.
 */
export async function POST(request: Request) {}
`,
		"anything/companies/[companyId]/route.ts": `export async function GET(request: Request) {}

export async function DELETE(request: Request) {}
`,
		"status/[code]/route.ts": `/**
 * Echo an arbitrary status code.
 */
export async function GET(request: Request) {}
`,
	}

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

// signToken builds an HMAC-SHA256 signed session token for the test secret.
func signToken(t *testing.T, sub string) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]interface{}{
		"sub":   sub,
		"email": sub + "@example.test",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("failed to marshal claims: %v", err)
	}

	signingInput := header + "." + base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(integrationSecret))
	mac.Write([]byte(signingInput))
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
