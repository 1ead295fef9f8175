package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_AgentYAML(t *testing.T) {
	cfg, err := Load("../../configs/agent.yaml")
	if err != nil {
		t.Fatalf("load agent.yaml: %v", err)
	}
	if cfg.Name != "Celia" || cfg.Port != 14007 || cfg.RoundDuration() != 10*time.Minute {
		t.Fatalf("cfg=%+v", cfg)
	}
	orch, ok := cfg.Orchestrator()
	if !ok {
		t.Fatalf("expected orchestrator service")
	}
	if got := orch.URL("/relayMessage"); got != "http://localhost:14010/relayMessage" {
		t.Fatalf("relay url=%q", got)
	}
	if cfg.Classifier.Enabled() {
		t.Fatalf("classifier should be disabled without url")
	}
	if cfg.Index.Backend != "sqlite" || cfg.Index.BatchSize != 128 {
		t.Fatalf("index=%+v", cfg.Index)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Defaults.Speaker != "Jeff" || cfg.Defaults.Role != "buyer" || cfg.Defaults.EnvironmentUUID == "" {
		t.Fatalf("defaults=%+v", cfg.Defaults)
	}
}

func TestLoad_ClassifierFromServiceMap(t *testing.T) {
	p := filepath.Join(t.TempDir(), "agent.yaml")
	raw := `
name: Celia
service_map:
  classifier:
    protocol: HTTPS
    host: assistant.example.com
classifier:
  assistant_id: a1
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Classifier.URL != "https://assistant.example.com" || !cfg.Classifier.Enabled() {
		t.Fatalf("classifier=%+v", cfg.Classifier)
	}
	if cfg.Classifier.Timeout() != 10*time.Second {
		t.Fatalf("timeout=%v", cfg.Classifier.Timeout())
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"empty name", func(c *Config) { c.Name = " " }, "name"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "port"},
		{"zero round", func(c *Config) { c.RoundDurationSec = 0 }, "round_duration_sec"},
		{"bad protocol", func(c *Config) {
			c.ServiceMap[ServiceOrchestrator] = Service{Protocol: "ftp", Host: "x"}
		}, "protocol"},
		{"unknown backend", func(c *Config) { c.Index.Backend = "d1" }, "index.backend"},
		{"http without url", func(c *Config) { c.Index.Backend = "http" }, "ingest_url"},
		{"classifier without assistant", func(c *Config) { c.Classifier.URL = "http://x" }, "assistant_id"},
	}
	for _, tc := range cases {
		cfg := defaults()
		tc.mut(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err=%v want mention of %q", tc.name, err, tc.want)
		}
	}
}

func TestServiceURL(t *testing.T) {
	if got := (Service{Host: "orch"}).URL("relayMessage"); got != "http://orch/relayMessage" {
		t.Fatalf("url=%q", got)
	}
	if got := (Service{Protocol: "https", Host: "::1", Port: 443}).URL("/x"); got != "https://[::1]:443/x" {
		t.Fatalf("url=%q", got)
	}
}
