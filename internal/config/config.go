// Package config provides configuration management for the TestRail reporter.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the reporter configuration file.
type Config struct {
	TestRail TestRailConfig `yaml:"testrail"`
}

// TestRailConfig contains the connection and publishing settings.
type TestRailConfig struct {
	// Domain is the TestRail host, e.g. example.testrail.io.
	Domain string `yaml:"domain"`

	// Username is the account email used for basic auth.
	Username string `yaml:"username"`

	// Password is the account password or API key.
	Password string `yaml:"password,omitempty"`

	// PasswordEnv names an environment variable holding the password.
	PasswordEnv string `yaml:"password_env,omitempty"`

	ProjectID    int      `yaml:"project_id"`
	SuiteID      SuiteIDs `yaml:"suite_id"`
	AssignedToID int      `yaml:"assigned_to_id,omitempty"`
	IncludeAll   bool     `yaml:"include_all"`

	// UpdateRun is an existing run to add cases and results to.
	UpdateRun int `yaml:"update_run,omitempty"`

	// UpdatePlan is an existing plan whose entries receive the results.
	UpdatePlan int `yaml:"update_plan,omitempty"`

	// StatusMap overrides the status id sent for the passed, failed or
	// pending outcome.
	StatusMap map[string]int `yaml:"status_map,omitempty"`

	RunName     string `yaml:"run_name,omitempty"`
	Platform    string `yaml:"platform,omitempty"`
	BrowserName string `yaml:"browser_name,omitempty"`

	// Command is the test command executed by "run" when none is given.
	Command string `yaml:"command,omitempty"`
}

// SuiteIDs holds one suite id or a list of them. A list switches
// publishing to plan mode, even when it has a single element.
type SuiteIDs struct {
	IDs   []int
	multi bool
}

// SingleSuite returns a SuiteIDs holding one scalar suite id.
func SingleSuite(id int) SuiteIDs {
	return SuiteIDs{IDs: []int{id}}
}

// MultiSuite returns a SuiteIDs holding a list of suite ids.
func MultiSuite(ids ...int) SuiteIDs {
	return SuiteIDs{IDs: ids, multi: true}
}

// IsMulti reports whether the suite ids were given as a list.
func (s SuiteIDs) IsMulti() bool {
	return s.multi
}

// IsSet reports whether at least one suite id is configured.
func (s SuiteIDs) IsSet() bool {
	return len(s.IDs) > 0
}

// First returns the first configured suite id, or 0.
func (s SuiteIDs) First() int {
	if len(s.IDs) == 0 {
		return 0
	}
	return s.IDs[0]
}

// UnmarshalYAML accepts either a scalar or a sequence of integers.
func (s *SuiteIDs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" || node.Tag == "!!null" {
			*s = SuiteIDs{}
			return nil
		}
		id, err := strconv.Atoi(node.Value)
		if err != nil {
			return fmt.Errorf("suite_id: invalid integer %q", node.Value)
		}
		*s = SingleSuite(id)
		return nil
	case yaml.SequenceNode:
		var ids []int
		if err := node.Decode(&ids); err != nil {
			return fmt.Errorf("suite_id: %w", err)
		}
		*s = MultiSuite(ids...)
		return nil
	default:
		return fmt.Errorf("suite_id: expected an integer or a list of integers")
	}
}

// MarshalYAML writes a scalar for a single suite and a list otherwise.
func (s SuiteIDs) MarshalYAML() (interface{}, error) {
	if !s.multi && len(s.IDs) == 1 {
		return s.IDs[0], nil
	}
	if len(s.IDs) == 0 {
		return nil, nil
	}
	return s.IDs, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TestRail: TestRailConfig{
			PasswordEnv: "TESTRAIL_PASSWORD",
			BrowserName: "go",
			StatusMap:   map[string]int{},
		},
	}
}

// Load loads configuration from a file. The file is checked against the
// configuration schema before it is decoded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes configuration data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindConfig searches for a configuration file starting from the given path.
func FindConfig(startPath string) (string, error) {
	candidates := []string{
		".testrail/config.yaml",
		".testrail.yaml",
		"testrail.yaml",
		"testrail.yml",
	}

	dir := startPath
	for {
		for _, candidate := range candidates {
			path := filepath.Join(dir, candidate)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no TestRail configuration found")
}

// LoadFromDir loads configuration from the given directory or its parents.
// Unlike Load it does not fall back to defaults: a reporter without a
// configuration file cannot publish anything.
func LoadFromDir(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return Load(path)
}

// ApplyEnv fills connection settings from environment variables. Values
// already present in the file win, except for the password which is only
// read from the environment when the file leaves it empty.
func (c *Config) ApplyEnv(getEnv func(string) string) {
	if getEnv == nil {
		getEnv = os.Getenv
	}
	tr := &c.TestRail

	if tr.Domain == "" {
		tr.Domain = getEnv("TESTRAIL_DOMAIN")
	}
	if tr.Username == "" {
		tr.Username = getEnv("TESTRAIL_USERNAME")
	}
	if tr.Password == "" {
		envName := tr.PasswordEnv
		if envName == "" {
			envName = "TESTRAIL_PASSWORD"
		}
		tr.Password = getEnv(envName)
	}
}

// Status returns the configured status id for an outcome, or def when the
// outcome is not overridden.
func (c *TestRailConfig) Status(outcome string, def int) int {
	if id, ok := c.StatusMap[outcome]; ok && id > 0 {
		return id
	}
	return def
}
