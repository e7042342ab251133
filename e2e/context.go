package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TestContext drives HTTP requests against a running screening server and
// holds the most recent response for assertion steps. It is shared by all
// step packages through narrow per-package interfaces.
type TestContext struct {
	baseURL    string
	client     *http.Client
	token      string
	serviceKey string

	lastStatus int
	lastBody   []byte

	// alertID carries the alert selected by a review step into later steps.
	alertID string
}

// NewTestContext creates a test context targeting the given server.
// token is a JWT minted with the server's signing key; serviceKey is the
// plaintext automation key whose hash the server was configured with.
// Either may be empty when the suite only exercises unauthenticated paths.
func NewTestContext(baseURL, token, serviceKey string) *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 30 * time.Second},
		token:      token,
		serviceKey: serviceKey,
	}
}

// POST sends an unauthenticated JSON POST request.
func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, nil)
}

// GET sends a GET request with the given headers.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

// AuthGET sends a GET request with the analyst bearer token.
func (tc *TestContext) AuthGET(path string) error {
	return tc.do(http.MethodGet, path, nil, tc.bearerHeaders())
}

// AuthPOST sends a JSON POST request with the analyst bearer token.
func (tc *TestContext) AuthPOST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, tc.bearerHeaders())
}

// ServicePOST sends a JSON POST request with the automation service key.
func (tc *TestContext) ServicePOST(path string, body interface{}) error {
	headers := map[string]string{"X-Service-Key": tc.serviceKey}
	return tc.do(http.MethodPost, path, body, headers)
}

func (tc *TestContext) bearerHeaders() map[string]string {
	if tc.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + tc.token}
}

func (tc *TestContext) do(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	return nil
}

// GetLastResponseStatus returns the status code of the most recent response.
func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

// GetLastResponseBody returns the raw body of the most recent response.
func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

// GetResponseField extracts a field from the most recent JSON response.
// Nested fields use dot notation and array elements use numeric segments,
// e.g. "items.0.error" or "audit.report.compliance_rating".
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var decoded interface{}
	if err := json.Unmarshal(tc.lastBody, &decoded); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}

	current := decoded
	for _, segment := range strings.Split(field, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			value, ok := node[segment]
			if !ok {
				return nil, fmt.Errorf("field %q not found in response", field)
			}
			current = value
		case []interface{}:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, fmt.Errorf("field %q not found in response", field)
			}
			current = node[index]
		default:
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return current, nil
}

// ResponseContains reports whether the most recent response body contains
// the given substring.
func (tc *TestContext) ResponseContains(substr string) bool {
	return bytes.Contains(tc.lastBody, []byte(substr))
}

// GetAccessToken returns the configured analyst bearer token.
func (tc *TestContext) GetAccessToken() string {
	return tc.token
}

// GetServiceKey returns the configured automation service key.
func (tc *TestContext) GetServiceKey() string {
	return tc.serviceKey
}

// SetAlertID records the alert under review for later steps.
func (tc *TestContext) SetAlertID(id string) {
	tc.alertID = id
}

// GetAlertID returns the alert recorded by SetAlertID.
func (tc *TestContext) GetAlertID() string {
	return tc.alertID
}
