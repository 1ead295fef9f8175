// Package config loads the agent settings file.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Service names in the service map.
const (
	ServiceOrchestrator = "environment-orchestrator"
	ServiceClassifier   = "classifier"
)

type Config struct {
	Name             string             `yaml:"name"`
	Port             int                `yaml:"port"`
	RoundDurationSec int                `yaml:"round_duration_sec"`
	Seed             int64              `yaml:"seed"`
	Defaults         MessageDefaults    `yaml:"defaults"`
	ServiceMap       map[string]Service `yaml:"service_map"`
	Classifier       ClassifierConfig   `yaml:"classifier"`
	DataDir          string             `yaml:"data_dir"`
	Index            IndexConfig        `yaml:"index"`
}

// MessageDefaults fill fields an inbound message leaves empty.
type MessageDefaults struct {
	Speaker         string `yaml:"speaker"`
	Role            string `yaml:"role"`
	EnvironmentUUID string `yaml:"environment_uuid"`
}

type Service struct {
	Protocol string `yaml:"protocol"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

// URL joins the service address with path, e.g. http://localhost:14010/relayMessage.
func (s Service) URL(path string) string {
	proto := s.Protocol
	if proto == "" {
		proto = "http"
	}
	host := s.Host
	if s.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(s.Port))
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return proto + "://" + host + path
}

type ClassifierConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"apikey"`
	AssistantID string `yaml:"assistant_id"`
	Version     string `yaml:"version"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

func (c ClassifierConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.AssistantID) != ""
}

func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// IndexConfig selects the negotiation read-model: a local sqlite file, a
// remote HTTP ingest endpoint, or none.
type IndexConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	IngestURL string `yaml:"ingest_url"`
	Token     string `yaml:"token"`
	BatchSize int    `yaml:"batch_size"`
	FlushMs   int    `yaml:"flush_ms"`
}

func (c Config) RoundDuration() time.Duration {
	return time.Duration(c.RoundDurationSec) * time.Second
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Orchestrator returns the environment orchestrator entry, if configured.
func (c Config) Orchestrator() (Service, bool) {
	s, ok := c.ServiceMap[ServiceOrchestrator]
	return s, ok && strings.TrimSpace(s.Host) != ""
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("agent.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("agent.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Name:             "Agent007",
		Port:             14007,
		RoundDurationSec: 600,
		Defaults: MessageDefaults{
			Speaker:         "Jeff",
			Role:            "buyer",
			EnvironmentUUID: "abcdefg",
		},
		ServiceMap: map[string]Service{
			ServiceOrchestrator: {Protocol: "http", Host: "localhost", Port: 14010},
		},
		DataDir: "./data",
		Index:   IndexConfig{Backend: "sqlite"},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.ServiceMap == nil {
		c.ServiceMap = map[string]Service{}
	}
	for name, s := range c.ServiceMap {
		s.Protocol = strings.ToLower(strings.TrimSpace(s.Protocol))
		if s.Protocol == "" {
			s.Protocol = "http"
		}
		s.Host = strings.TrimSpace(s.Host)
		c.ServiceMap[name] = s
	}
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	if c.Index.Backend == "" {
		c.Index.Backend = "sqlite"
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 128
	}
	if c.Index.FlushMs <= 0 {
		c.Index.FlushMs = 500
	}
	if strings.TrimSpace(c.Classifier.URL) == "" {
		if svc, ok := c.ServiceMap[ServiceClassifier]; ok && svc.Host != "" {
			c.Classifier.URL = svc.URL("")
		}
	}
	if c.Classifier.TimeoutMs <= 0 {
		c.Classifier.TimeoutMs = 10000
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if c.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in [1, 65535]")
	}
	if c.RoundDurationSec <= 0 {
		return fmt.Errorf("round_duration_sec must be > 0")
	}
	for name, s := range c.ServiceMap {
		if s.Protocol != "http" && s.Protocol != "https" {
			return fmt.Errorf("service %s protocol must be http or https", name)
		}
		if s.Port < 0 || s.Port > 65535 {
			return fmt.Errorf("service %s port must be in [0, 65535]", name)
		}
	}
	switch c.Index.Backend {
	case "sqlite", "none":
	case "http":
		if strings.TrimSpace(c.Index.IngestURL) == "" {
			return fmt.Errorf("index.ingest_url is required for the http backend")
		}
	default:
		return fmt.Errorf("index.backend must be sqlite, http or none")
	}
	if c.Classifier.URL != "" && c.Classifier.AssistantID == "" {
		return fmt.Errorf("classifier.assistant_id is required when classifier.url is set")
	}
	return nil
}
