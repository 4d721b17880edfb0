package discovery

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"actionbroker/internal/common"
)

func TestLoadCapabilities_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capabilities.yaml")
	content := `
/api/crm/companies:
  POST:
    requiredBodyFields: [name]
    bodyFields: [name, domain, ownerId]
  get:
    queryParams: [q, page]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write capabilities: %v", err)
	}

	caps, err := LoadCapabilities(path, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	post, ok := caps.Lookup("/api/crm/companies", "POST")
	if !ok {
		t.Fatal("expected POST capability")
	}
	if !reflect.DeepEqual(post.RequiredBodyFields, []string{"name"}) {
		t.Errorf("unexpected required fields: %v", post.RequiredBodyFields)
	}
	if !reflect.DeepEqual(post.BodyFields, []string{"name", "domain", "ownerId"}) {
		t.Errorf("unexpected body fields: %v", post.BodyFields)
	}

	// Verb case is normalized on load and lookup.
	get, ok := caps.Lookup("/api/crm/companies", "get")
	if !ok {
		t.Fatal("expected GET capability via lowercase lookup")
	}
	if !reflect.DeepEqual(get.QueryParams, []string{"q", "page"}) {
		t.Errorf("unexpected query params: %v", get.QueryParams)
	}
}

func TestLoadCapabilities_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capabilities.json")
	content := `{
  "/api/crm/contacts": {
    "GET": {"queryParams": ["companyId"]}
  }
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write capabilities: %v", err)
	}

	caps, err := LoadCapabilities(path, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	mc, ok := caps.Lookup("/api/crm/contacts", "GET")
	if !ok {
		t.Fatal("expected GET capability")
	}
	if !reflect.DeepEqual(mc.QueryParams, []string{"companyId"}) {
		t.Errorf("unexpected query params: %v", mc.QueryParams)
	}
}

func TestLoadCapabilities_MissingFileIsEmpty(t *testing.T) {
	caps, err := LoadCapabilities(filepath.Join(t.TempDir(), "absent.yaml"), common.NewSilentLogger())
	if err != nil {
		t.Fatalf("expected missing file to degrade to empty, got %v", err)
	}
	if len(caps) != 0 {
		t.Errorf("expected empty capabilities, got %+v", caps)
	}
}

func TestLoadCapabilities_EmptyPathIsEmpty(t *testing.T) {
	caps, err := LoadCapabilities("", common.NewSilentLogger())
	if err != nil {
		t.Fatalf("expected empty path to degrade to empty, got %v", err)
	}
	if len(caps) != 0 {
		t.Errorf("expected empty capabilities, got %+v", caps)
	}
}

func TestLoadCapabilities_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capabilities.yaml")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write capabilities: %v", err)
	}
	if _, err := LoadCapabilities(path, common.NewSilentLogger()); err == nil {
		t.Fatal("expected error for malformed capabilities file")
	}
}

func TestCapabilities_LookupMiss(t *testing.T) {
	caps := Capabilities{
		"/api/crm/companies": {"POST": MethodCapability{RequiredBodyFields: []string{"name"}}},
	}
	if _, ok := caps.Lookup("/api/crm/companies", "DELETE"); ok {
		t.Error("expected miss for undeclared verb")
	}
	if _, ok := caps.Lookup("/api/crm/deals", "POST"); ok {
		t.Error("expected miss for undeclared path")
	}
}
