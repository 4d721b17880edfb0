package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"actionbroker/internal/common"
)

const (
	// maxResponseSize caps how much of an upstream response body is read (50MB).
	maxResponseSize = 50 << 20

	// defaultTimeout bounds one host application call end to end.
	defaultTimeout = 300 * time.Second
)

// Forwarder executes resolved calls against the host application,
// forwarding the caller's credential headers byte for byte. It holds no
// credentials of its own.
type Forwarder struct {
	baseURL string
	client  *http.Client
	logger  *common.Logger
}

// NewForwarder creates a forwarder for the host application at baseURL.
func NewForwarder(baseURL string, timeout time.Duration, logger *common.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Forwarder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Do executes one call. The result always carries the resolved URL and
// method; failures surface inside the result rather than as a Go error
// so batch execution can account for them per entry. Transport failures
// report status 502.
func (f *Forwarder) Do(ctx context.Context, creds Credentials, call Request) Result {
	target := f.baseURL + call.Path
	if len(call.Query) > 0 {
		values := url.Values{}
		for key, value := range call.Query {
			values.Set(key, value)
		}
		target += "?" + values.Encode()
	}

	result := Result{URL: target, Method: call.Method}

	var reqBody io.Reader
	if call.Body != nil && call.Method != http.MethodGet {
		data, err := json.Marshal(call.Body)
		if err != nil {
			result.Status = http.StatusBadRequest
			result.Error = fmt.Sprintf("failed to encode request body: %v", err)
			return result
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target, reqBody)
	if err != nil {
		result.Status = http.StatusBadRequest
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	applyCredentials(req, creds)

	start := time.Now()
	resp, err := f.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		f.logger.Warn().Err(err).
			Str("method", call.Method).
			Str("url", target).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("Host application request failed")
		result.Status = http.StatusBadGateway
		result.Error = fmt.Sprintf("host application unreachable: %v", err)
		return result
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		result.Status = http.StatusBadGateway
		result.Error = fmt.Sprintf("failed to read response: %v", err)
		return result
	}

	f.logger.Debug().
		Str("method", call.Method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("Host application request completed")

	result.Status = resp.StatusCode
	result.Response = decodeResponse(body)
	if resp.StatusCode >= 400 {
		result.Error = errorMessage(resp.StatusCode, body)
	}
	return result
}

// applyCredentials forwards the caller's credential headers unchanged.
func applyCredentials(req *http.Request, creds Credentials) {
	if creds.Authorization != "" {
		req.Header.Set("Authorization", creds.Authorization)
	}
	if creds.Cookie != "" {
		req.Header.Set("Cookie", creds.Cookie)
	}
}

// decodeResponse interprets an upstream body as JSON when possible and
// falls back to the raw text.
func decodeResponse(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	return decoded
}

// errorMessage extracts a usable message from an upstream error response.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("host application returned %d: %s", status, strings.TrimSpace(string(body)))
}
