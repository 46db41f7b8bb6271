package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TestRail.PasswordEnv != "TESTRAIL_PASSWORD" {
		t.Errorf("Default password_env = %q, want TESTRAIL_PASSWORD", cfg.TestRail.PasswordEnv)
	}

	if cfg.TestRail.BrowserName != "go" {
		t.Errorf("Default browser_name = %q, want go", cfg.TestRail.BrowserName)
	}

	if cfg.TestRail.SuiteID.IsSet() {
		t.Error("Default suite_id should be unset")
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "testrail.yaml")

	configContent := `
testrail:
  domain: example.testrail.io
  username: qa@example.com
  password: secret
  project_id: 7
  suite_id: 1723
  include_all: false
  update_run: 5149
  status_map:
    pending: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tr := cfg.TestRail
	if tr.Domain != "example.testrail.io" {
		t.Errorf("Domain = %q, want example.testrail.io", tr.Domain)
	}
	if tr.ProjectID != 7 {
		t.Errorf("ProjectID = %d, want 7", tr.ProjectID)
	}
	if tr.SuiteID.IsMulti() {
		t.Error("scalar suite_id should not be multi")
	}
	if tr.SuiteID.First() != 1723 {
		t.Errorf("SuiteID = %d, want 1723", tr.SuiteID.First())
	}
	if tr.UpdateRun != 5149 {
		t.Errorf("UpdateRun = %d, want 5149", tr.UpdateRun)
	}
	if got := tr.Status("pending", 4); got != 2 {
		t.Errorf("Status(pending) = %d, want 2", got)
	}
	if got := tr.Status("passed", 1); got != 1 {
		t.Errorf("Status(passed) = %d, want default 1", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestSuiteIDList(t *testing.T) {
	cfg, err := Parse([]byte(`
testrail:
  suite_id: [1723, 1724]
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	ids := cfg.TestRail.SuiteID
	if !ids.IsMulti() {
		t.Error("list suite_id should be multi")
	}
	if len(ids.IDs) != 2 || ids.IDs[0] != 1723 || ids.IDs[1] != 1724 {
		t.Errorf("SuiteID.IDs = %v, want [1723 1724]", ids.IDs)
	}
}

func TestSingleElementListIsMulti(t *testing.T) {
	cfg, err := Parse([]byte("testrail:\n  suite_id: [9]\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !cfg.TestRail.SuiteID.IsMulti() {
		t.Error("a one-element list should still select plan mode")
	}
}

func TestLoadConfigNotFound(t *testing.T) {
	_, err := Load("/nonexistent/testrail.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "testrail:\n  domian: typo.example.com\n"},
		{"string project", "testrail:\n  project_id: abc\n"},
		{"negative suite", "testrail:\n  suite_id: -1\n"},
		{"empty suite list", "testrail:\n  suite_id: []\n"},
		{"unknown status outcome", "testrail:\n  status_map:\n    flaky: 4\n"},
		{"blocked is a status, not an outcome", "testrail:\n  status_map:\n    blocked: 2\n"},
		{"unknown root", "reporter:\n  domain: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content)); err == nil {
				t.Errorf("Parse(%q) succeeded, want schema error", tt.content)
			}
		})
	}
}

func TestValidateRequiredFields(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.TestRail.Domain = "example.testrail.io"
		cfg.TestRail.Username = "qa@example.com"
		cfg.TestRail.Password = "secret"
		cfg.TestRail.ProjectID = 1
		cfg.TestRail.SuiteID = SingleSuite(3)
		return cfg
	}

	tests := []struct {
		field  string
		mutate func(*Config)
	}{
		{"domain", func(c *Config) { c.TestRail.Domain = "" }},
		{"username", func(c *Config) { c.TestRail.Username = "" }},
		{"password", func(c *Config) { c.TestRail.Password = "" }},
		{"project_id", func(c *Config) { c.TestRail.ProjectID = 0 }},
		{"suite_id", func(c *Config) { c.TestRail.SuiteID = SuiteIDs{} }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	for _, tt := range tests {
		cfg := valid()
		tt.mutate(cfg)

		err := cfg.Validate()
		var cfgErr *Error
		if !errors.As(err, &cfgErr) {
			t.Errorf("missing %s: got %v, want *config.Error", tt.field, err)
			continue
		}
		if cfgErr.Field != tt.field {
			t.Errorf("missing %s: Field = %q", tt.field, cfgErr.Field)
		}
	}

	var nilCfg *Config
	if err := nilCfg.Validate(); err == nil {
		t.Error("nil config should fail validation")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TESTRAIL_DOMAIN":   "env.testrail.io",
		"TESTRAIL_USERNAME": "env@example.com",
		"CUSTOM_KEY":        "from-env",
	}
	getEnv := func(k string) string { return env[k] }

	cfg := DefaultConfig()
	cfg.TestRail.Username = "file@example.com"
	cfg.TestRail.PasswordEnv = "CUSTOM_KEY"
	cfg.ApplyEnv(getEnv)

	if cfg.TestRail.Domain != "env.testrail.io" {
		t.Errorf("Domain = %q, want env.testrail.io", cfg.TestRail.Domain)
	}
	if cfg.TestRail.Username != "file@example.com" {
		t.Errorf("Username = %q, file value should win", cfg.TestRail.Username)
	}
	if cfg.TestRail.Password != "from-env" {
		t.Errorf("Password = %q, want from-env", cfg.TestRail.Password)
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".testrail", "config.yaml")

	cfg := DefaultConfig()
	cfg.TestRail.Domain = "example.testrail.io"
	cfg.TestRail.ProjectID = 3
	cfg.TestRail.SuiteID = MultiSuite(1, 2)

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.TestRail.Domain != "example.testrail.io" {
		t.Errorf("Domain = %q", loaded.TestRail.Domain)
	}
	if !loaded.TestRail.SuiteID.IsMulti() || len(loaded.TestRail.SuiteID.IDs) != 2 {
		t.Errorf("SuiteID = %+v, want multi [1 2]", loaded.TestRail.SuiteID)
	}
}

func TestFindConfig(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "testrail.yaml"), []byte("testrail:\n  project_id: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	subDir := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	path, err := FindConfig(subDir)
	if err != nil {
		t.Fatalf("FindConfig failed: %v", err)
	}
	if path != filepath.Join(tmpDir, "testrail.yaml") {
		t.Errorf("FindConfig = %q", path)
	}

	cfg, err := LoadFromDir(subDir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if cfg.TestRail.ProjectID != 1 {
		t.Errorf("ProjectID = %d, want 1", cfg.TestRail.ProjectID)
	}
}
