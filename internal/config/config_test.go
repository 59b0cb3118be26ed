package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
providers:
  github:
    kind: github
    model: gpt-4o-mini
agent:
  default_provider: github
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Agent.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want 10", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.ReflectionThreshold != 3 {
		t.Errorf("ReflectionThreshold = %d, want 3", cfg.Agent.ReflectionThreshold)
	}
	if cfg.Quota.DailyCallLimit != 1000 {
		t.Errorf("DailyCallLimit = %d, want 1000", cfg.Quota.DailyCallLimit)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, minimalConfig+"\nbogus_top_level_key: true\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsNoProviders(t *testing.T) {
	path := writeConfig(t, "server:\n  host: 0.0.0.0\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error when no providers configured")
	}
	if !strings.Contains(err.Error(), "providers must configure at least one adapter") {
		t.Errorf("error = %v, missing providers message", err)
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
providers:
  github:
    kind: github
agent:
  default_provider: does-not-exist
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown default_provider")
	}
	if !strings.Contains(err.Error(), "does-not-exist") {
		t.Errorf("error = %v, want mention of default_provider value", err)
	}
}

func TestLoadValidatesProviderKind(t *testing.T) {
	path := writeConfig(t, `
providers:
  weird:
    kind: not-a-real-provider
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid provider kind")
	}
	if !strings.Contains(err.Error(), "not-a-real-provider") {
		t.Errorf("error = %v, want mention of bad kind", err)
	}
}

func TestLoadValidatesMCPStdioRequiresCommand(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
mcp:
  mcpServers:
    filesystem:
      enabled: true
      transport: stdio
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for stdio server missing command")
	}
	if !strings.Contains(err.Error(), "mcp.mcpServers.filesystem.command") {
		t.Errorf("error = %v, want command requirement message", err)
	}
}

func TestLoadMCPDefaultsTimeoutFromSettings(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
mcp:
  settings:
    default_timeout: 45
  mcpServers:
    filesystem:
      enabled: true
      command: mcp-server-filesystem
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.MCP.Servers["filesystem"].Timeout; got != 45 {
		t.Errorf("filesystem.Timeout = %d, want 45", got)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	includedPath := filepath.Join(dir, "providers.yaml")
	if err := os.WriteFile(includedPath, []byte("providers:\n  github:\n    kind: github\n"), 0o644); err != nil {
		t.Fatalf("write included file: %v", err)
	}
	mainPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(mainPath, []byte("include: providers.yaml\nagent:\n  default_provider: github\n"), 0o644); err != nil {
		t.Fatalf("write main config: %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := cfg.Providers["github"]; !ok {
		t.Fatal("expected providers.github from included file")
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_PROVIDER_API_KEY", "secret-value")
	path := writeConfig(t, `
providers:
  github:
    kind: github
    api_key: ${TEST_PROVIDER_API_KEY}
agent:
  default_provider: github
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers["github"].APIKey != "secret-value" {
		t.Errorf("APIKey = %q, want \"secret-value\"", cfg.Providers["github"].APIKey)
	}
}

func TestLoadExpandsEnvVarDefault(t *testing.T) {
	os.Unsetenv("TEST_PROVIDER_MODEL_UNSET")
	path := writeConfig(t, `
providers:
  github:
    kind: github
    model: ${TEST_PROVIDER_MODEL_UNSET:-gpt-4o-mini}
agent:
  default_provider: github
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers["github"].Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want fallback \"gpt-4o-mini\"", cfg.Providers["github"].Model)
	}
}

func TestLoadExpandsEnvVarDefaultPrefersSetValue(t *testing.T) {
	t.Setenv("TEST_PROVIDER_MODEL_SET", "gpt-4o")
	path := writeConfig(t, `
providers:
  github:
    kind: github
    model: ${TEST_PROVIDER_MODEL_SET:-gpt-4o-mini}
agent:
  default_provider: github
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers["github"].Model != "gpt-4o" {
		t.Errorf("Model = %q, want set value \"gpt-4o\"", cfg.Providers["github"].Model)
	}
}

func TestLoadRejectsNewerConfigVersion(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf("version: %d\n", CurrentVersion+1)+minimalConfig)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "newer than this build") {
		t.Fatalf("Load() error = %v, want a newer-than-build version error", err)
	}
}

func TestLoadAcceptsOmittedVersion(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error = %v, want nil for a config with no version field", err)
	}
}

func TestLoadRejectsExcessiveIncludeDepth(t *testing.T) {
	dir := t.TempDir()
	const depth = maxIncludeDepth + 2
	for i := 0; i <= depth; i++ {
		name := filepath.Join(dir, fmt.Sprintf("level%d.yaml", i))
		var body string
		if i == depth {
			body = "providers:\n  github:\n    kind: github\n"
		} else {
			body = fmt.Sprintf("include: level%d.yaml\n", i+1)
		}
		if err := os.WriteFile(name, []byte(body), 0o644); err != nil {
			t.Fatalf("write level file: %v", err)
		}
	}

	_, err := LoadRaw(filepath.Join(dir, "level0.yaml"))
	if err == nil || !strings.Contains(err.Error(), "include depth") {
		t.Fatalf("LoadRaw() error = %v, want include depth error", err)
	}
}
