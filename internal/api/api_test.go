package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stackwise/nacl-manager/internal/api"
	"github.com/stackwise/nacl-manager/internal/domain"
	"github.com/stackwise/nacl-manager/internal/service"
	"github.com/stackwise/nacl-manager/internal/storage/memory"
)

// testServer creates a test server with in-memory storage
type testServer struct {
	handler      http.Handler
	store        *memory.Store
	bootstrapKey string
}

func newTestServer() *testServer {
	store := memory.New()
	bootstrapKey := "test-bootstrap-key"

	// No provider client and no auto-reconcile: API behavior only.
	reconcileService := service.NewReconcileService(store, nil, 5*time.Second, false)

	// OIDC disabled for tests
	handler := api.NewRouter(store, reconcileService, bootstrapKey, nil)

	return &testServer{
		handler:      handler,
		store:        store,
		bootstrapKey: bootstrapKey,
	}
}

func (ts *testServer) request(method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("GET", "/health", nil, "")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", resp["status"])
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer()

	// Request without auth header
	rr := ts.request("GET", "/api/v1/workspaces", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with invalid auth header format
	req := httptest.NewRequest("GET", "/api/v1/workspaces", nil)
	req.Header.Set("Authorization", "Basic invalid")
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with an unknown key
	rr = ts.request("GET", "/api/v1/workspaces", nil, "invalid-key")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestBootstrapKeyAuth(t *testing.T) {
	ts := newTestServer()

	// Bootstrap key should work when no API keys exist
	rr := ts.request("GET", "/api/v1/workspaces", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bootstrap key, got %d", rr.Code)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	ts := newTestServer()

	// Create API key using bootstrap key
	createReq := domain.CreateAPIKeyRequest{Name: "Test Key"}
	rr := ts.request("POST", "/api/v1/keys", createReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var createResp domain.CreateAPIKeyResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &createResp)
	if createResp.Key == "" {
		t.Error("Expected key to be returned on creation")
	}
	if createResp.Name != "Test Key" {
		t.Errorf("Expected name 'Test Key', got '%s'", createResp.Name)
	}

	// Once a real key exists, the bootstrap key stops working
	rr = ts.request("GET", "/api/v1/workspaces", nil, ts.bootstrapKey)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected bootstrap key rejected after first real key, got %d", rr.Code)
	}

	// Use the new API key
	rr = ts.request("GET", "/api/v1/workspaces", nil, createResp.Key)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with new API key, got %d", rr.Code)
	}

	// List API keys
	rr = ts.request("GET", "/api/v1/keys", nil, createResp.Key)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var keys []*domain.APIKey
	_ = json.Unmarshal(rr.Body.Bytes(), &keys)
	if len(keys) != 1 {
		t.Errorf("Expected 1 key, got %d", len(keys))
	}

	// Delete API key
	rr = ts.request("DELETE", "/api/v1/keys/"+createResp.ID, nil, createResp.Key)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
}

func TestWorkspaceCRUD(t *testing.T) {
	ts := newTestServer()

	createReq := domain.CreateWorkspaceRequest{Name: "prod"}
	rr := ts.request("POST", "/api/v1/workspaces", createReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var ws domain.Workspace
	_ = json.Unmarshal(rr.Body.Bytes(), &ws)
	if ws.ID == "" || ws.Name != "prod" {
		t.Fatalf("Unexpected workspace: %+v", ws)
	}

	// Duplicate name conflicts
	rr = ts.request("POST", "/api/v1/workspaces", createReq, ts.bootstrapKey)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate name, got %d", rr.Code)
	}

	// Get
	rr = ts.request("GET", "/api/v1/workspaces/"+ws.ID, nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	// Replace the spec
	spec := domain.ACLSpec{
		VPCID: "vpc-1",
		Rules: []domain.RuleSpec{
			{Key: "ssh", RuleNumber: 200, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8", FromPort: 22, ToPort: 22},
		},
	}
	rr = ts.request("PUT", "/api/v1/workspaces/"+ws.ID+"/spec", spec, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = ts.request("GET", "/api/v1/workspaces/"+ws.ID+"/spec", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var gotSpec domain.ACLSpec
	_ = json.Unmarshal(rr.Body.Bytes(), &gotSpec)
	if gotSpec.VPCID != "vpc-1" || len(gotSpec.Rules) != 1 {
		t.Errorf("Unexpected stored spec: %+v", gotSpec)
	}

	// Delete
	rr = ts.request("DELETE", "/api/v1/workspaces/"+ws.ID, nil, ts.bootstrapKey)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	rr = ts.request("GET", "/api/v1/workspaces/"+ws.ID, nil, ts.bootstrapKey)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", rr.Code)
	}
}

func TestWorkspaceSpecValidation(t *testing.T) {
	ts := newTestServer()

	createReq := domain.CreateWorkspaceRequest{Name: "staging"}
	rr := ts.request("POST", "/api/v1/workspaces", createReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	var ws domain.Workspace
	_ = json.Unmarshal(rr.Body.Bytes(), &ws)

	// A spec with a bad rule is rejected before storage
	bad := domain.ACLSpec{
		VPCID: "vpc-1",
		Rules: []domain.RuleSpec{
			{RuleNumber: 0, Direction: "sideways", Protocol: "bogus", Action: "maybe"},
		},
	}
	rr = ts.request("PUT", "/api/v1/workspaces/"+ws.ID+"/spec", bad, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Errors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.Errors) == 0 {
		t.Error("Expected field-level validation errors in the response")
	}
}

func TestHuJSONSpecAccepted(t *testing.T) {
	ts := newTestServer()

	createReq := domain.CreateWorkspaceRequest{Name: "jwcc"}
	rr := ts.request("POST", "/api/v1/workspaces", createReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	var ws domain.Workspace
	_ = json.Unmarshal(rr.Body.Bytes(), &ws)

	// Comments and trailing commas are fine in spec documents
	hujsonSpec := `{
		// production VPC
		"vpc_id": "vpc-1",
		"rules": [
			{"key": "ssh", "rule_number": 200, "direction": "ingress", "protocol": "6", "action": "allow", "cidr_block": "10.0.0.0/8", "from_port": 22, "to_port": 22},
		],
	}`

	req := httptest.NewRequest("PUT", "/api/v1/workspaces/"+ws.ID+"/spec", bytes.NewReader([]byte(hujsonSpec)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.bootstrapKey)
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for JWCC spec, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestPlanEndpoint(t *testing.T) {
	ts := newTestServer()

	createReq := domain.CreateWorkspaceRequest{
		Name: "planned",
		Spec: &domain.ACLSpec{
			VPCID: "vpc-1",
			Rules: []domain.RuleSpec{
				{Key: "ssh", RuleNumber: 200, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8", FromPort: 22, ToPort: 22},
			},
		},
	}
	rr := ts.request("POST", "/api/v1/workspaces", createReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var ws domain.Workspace
	_ = json.Unmarshal(rr.Body.Bytes(), &ws)

	rr = ts.request("GET", "/api/v1/workspaces/"+ws.ID+"/plan", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var plan domain.Plan
	_ = json.Unmarshal(rr.Body.Bytes(), &plan)
	if !plan.Enabled {
		t.Error("Expected an enabled plan")
	}
	if plan.Mode != domain.ModeCreateBeforeDestroy {
		t.Errorf("Expected create-before-destroy mode, got %q", plan.Mode)
	}
	if plan.Fingerprint == "" {
		t.Error("Expected a content fingerprint in the plan")
	}
	// ssh plus the synthetic egress rule
	if len(plan.ResourcedRules) != 2 {
		t.Errorf("Expected 2 resourced rules, got %d", len(plan.ResourcedRules))
	}
}

func TestVersionsEmpty(t *testing.T) {
	ts := newTestServer()

	createReq := domain.CreateWorkspaceRequest{Name: "empty"}
	rr := ts.request("POST", "/api/v1/workspaces", createReq, ts.bootstrapKey)
	var ws domain.Workspace
	_ = json.Unmarshal(rr.Body.Bytes(), &ws)

	rr = ts.request("GET", "/api/v1/workspaces/"+ws.ID+"/versions", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var versions []*domain.ReconcileVersion
	_ = json.Unmarshal(rr.Body.Bytes(), &versions)
	if len(versions) != 0 {
		t.Errorf("Expected no versions yet, got %d", len(versions))
	}
}
