package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gambtho/container-assist/internal/api"
	"github.com/gambtho/container-assist/internal/api/handlers"
	"github.com/gambtho/container-assist/internal/config"
	"github.com/gambtho/container-assist/internal/notify"
	"github.com/gambtho/container-assist/internal/ops"
	"github.com/gambtho/container-assist/internal/pipeline"
	"github.com/gambtho/container-assist/internal/resources"
	"github.com/gambtho/container-assist/internal/sessions"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	opRegistry := ops.NewRegistry()
	ops.RegisterBuiltins(opRegistry)

	registry := config.NewRegistry(opRegistry.CategoryOf)
	store := resources.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	publisher := resources.NewPublisher(store, "cassist", 3600, 50)
	sessionStore := sessions.NewMemoryStore()
	notifier := notify.NewService()

	wrapper := pipeline.NewWrapper(registry, opRegistry, publisher,
		pipeline.WithSessions(sessionStore),
	)

	h := handlers.New(wrapper, registry, opRegistry, publisher, sessionStore, notifier)
	srv := httptest.NewServer(api.NewRouter(&config.Config{Port: 0, Version: "test"}, h))
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	body := decode(t, resp)
	if body["status"] != "healthy" {
		t.Errorf("health status = %v, want healthy", body["status"])
	}
}

func TestListOperations(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/operations")
	if err != nil {
		t.Fatalf("GET /operations error = %v", err)
	}
	body := decode(t, resp)
	operations, ok := body["operations"].([]any)
	if !ok || len(operations) < 2 {
		t.Fatalf("operations = %v, want the registered builtins", body["operations"])
	}
}

func TestExecuteOperationEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	payload := `{"sessionId":"sess-1","params":{"app":"web","port":3000}}`
	resp, err := http.Post(srv.URL+"/api/v1/operations/generate-recipe/execute", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST execute error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute status = %d, want 200", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["success"] != true {
		t.Errorf("execute success = %v, want true: %v", body["success"], body)
	}
}

func TestExecuteUnknownOperation(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/operations/nope/execute", "application/json", strings.NewReader(`{"sessionId":"s"}`))
	if err != nil {
		t.Fatalf("POST execute error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown operation status = %d, want 404", resp.StatusCode)
	}
}

func TestExecuteRequiresSessionID(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/operations/analyze-repo/execute", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST execute error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing sessionId status = %d, want 400", resp.StatusCode)
	}
}

func TestConfigLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	// Read the resolved config.
	resp, err := client.Get(srv.URL + "/api/v1/operations/generate-recipe/config")
	if err != nil {
		t.Fatalf("GET config error = %v", err)
	}
	cfg := decode(t, resp)
	if cfg["enabled"] != true {
		t.Fatalf("config enabled = %v, want true", cfg["enabled"])
	}

	// A valid partial update applies.
	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/operations/generate-recipe/config",
		strings.NewReader(`{"limits":{"maxRetries":5}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("PATCH config error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PATCH status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	// An out-of-bounds update is rejected with the issues listed.
	req, _ = http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/operations/generate-recipe/config",
		strings.NewReader(`{"limits":{"maxRetries":50}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("PATCH config error = %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid PATCH status = %d, want 422", resp.StatusCode)
	}
	body := decode(t, resp)
	if issues, ok := body["issues"].([]any); !ok || len(issues) == 0 {
		t.Errorf("invalid PATCH response missing issues: %v", body)
	}

	// Reset returns the defaults.
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/operations/generate-recipe/config", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("DELETE config error = %v", err)
	}
	cfg = decode(t, resp)
	limits := cfg["limits"].(map[string]any)
	if limits["maxRetries"].(float64) != 3 {
		t.Errorf("maxRetries after reset = %v, want 3", limits["maxRetries"])
	}

	// The audit trail recorded the update and the reset.
	resp, err = client.Get(srv.URL + "/api/v1/config/audit")
	if err != nil {
		t.Fatalf("GET audit error = %v", err)
	}
	audit := decode(t, resp)
	if events, ok := audit["events"].([]any); !ok || len(events) != 2 {
		t.Errorf("audit events = %v, want 2 entries", audit["events"])
	}
}

func TestReadResourceNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/resources?uri=cassist://sess/resources/deadbeef00000000")
	if err != nil {
		t.Fatalf("GET resource error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing resource status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	// Execute creates session state on the way through.
	payload := `{"sessionId":"sess-http","params":{"repo":"github.com/acme/app"}}`
	resp, err := client.Post(srv.URL+"/api/v1/operations/analyze-repo/execute", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST execute error = %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/api/v1/sessions/sess-http")
	if err != nil {
		t.Fatalf("GET session error = %v", err)
	}
	state := decode(t, resp)
	if state["sessionId"] != "sess-http" {
		t.Errorf("session id = %v, want sess-http", state["sessionId"])
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/sessions/sess-http", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("DELETE session error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("DELETE session status = %d, want 200", resp.StatusCode)
	}
}

func TestRegisterChannel(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/channels", "application/json",
		strings.NewReader(`{"name":"hook","url":"https://hooks.example.com/progress","active":true}`))
	if err != nil {
		t.Fatalf("POST channel error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("register channel status = %d, want 201", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/v1/channels", "application/json", strings.NewReader(`{"name":"no-url"}`))
	if err != nil {
		t.Fatalf("POST channel error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("channel without url status = %d, want 400", resp.StatusCode)
	}
}
