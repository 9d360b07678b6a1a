package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vasa.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "server:\n  addr: \"\"\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", cfg.OpenAI.Model)
	}
	if cfg.Memory.ChatTimeoutSeconds != 10 {
		t.Errorf("expected default chat timeout 10, got %d", cfg.Memory.ChatTimeoutSeconds)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9090"
database:
  dsn: "/tmp/vasa.db"
voice:
  webhook_secret: "shh"
  agents:
    - id: "agent_a"
      name: "Companion"
      voice_id: "voice_1"
    - id: "agent_b"
      name: "Other"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %q", cfg.Server.Addr)
	}
	if len(cfg.Voice.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(cfg.Voice.Agents))
	}
	if cfg.Voice.Agents[0].Name != "Companion" {
		t.Errorf("unexpected agent name %q", cfg.Voice.Agents[0].Name)
	}
}

func TestDefaultAgent(t *testing.T) {
	path := writeConfigFile(t, `
voice:
  agents:
    - id: "agent_a"
      name: "First"
    - id: "agent_b"
      name: "Second"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if got := cfg.DefaultAgent(""); got == nil || got.ID != "agent_a" {
		t.Errorf("expected first agent for empty id, got %+v", got)
	}
	if got := cfg.DefaultAgent("agent_b"); got == nil || got.Name != "Second" {
		t.Errorf("expected agent_b, got %+v", got)
	}
	if got := cfg.DefaultAgent("agent_missing"); got != nil {
		t.Errorf("expected nil for unknown agent, got %+v", got)
	}
}

func TestDefaultAgentNoAgents(t *testing.T) {
	cfg := &Config{}
	if got := cfg.DefaultAgent(""); got != nil {
		t.Errorf("expected nil when no agents configured, got %+v", got)
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "server: [this is not\n  a mapping\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestLoadConfigMissingFileUsesEnvOnly(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig without file failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
}
