package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
name: task-observer
log_level: INFO
api:
  base_url: http://127.0.0.1:8655/api
  timeout: 10
channel:
  url: ws://127.0.0.1:8655/ws
buffer:
  capacity: 180
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Name != "task-observer" {
		t.Errorf("unexpected name %q", cfg.Name)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:8655/api" {
		t.Errorf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.Buffer.Capacity != 180 {
		t.Errorf("unexpected capacity %d", cfg.Buffer.Capacity)
	}
}

func TestDefaultsApplied(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, `
name: task-observer
api:
  base_url: http://localhost:1234
channel:
  url: ws://localhost:1234/ws
`))
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Buffer.Capacity != 180 {
		t.Errorf("expected default capacity 180, got %d", cfg.Buffer.Capacity)
	}
	if cfg.Channel.ReconnectAttempts != 5 {
		t.Errorf("expected default 5 reconnect attempts, got %d", cfg.Channel.ReconnectAttempts)
	}
}

func TestEnvOverridesBaseURL(t *testing.T) {
	t.Setenv("TASK_API_URL", "http://10.0.0.5:9000/api")
	t.Setenv("TASK_CHANNEL_URL", "ws://10.0.0.5:9000/ws")

	cfg, err := NewConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.API.BaseURL != "http://10.0.0.5:9000/api" {
		t.Errorf("env override ignored, got %q", cfg.API.BaseURL)
	}
	if cfg.Channel.URL != "ws://10.0.0.5:9000/ws" {
		t.Errorf("env override ignored, got %q", cfg.Channel.URL)
	}
}

func TestValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing name", `
api:
  base_url: http://x
channel:
  url: ws://x
`},
		{"missing api url", `
name: t
channel:
  url: ws://x
`},
		{"missing channel url", `
name: t
api:
  base_url: http://x
`},
		{"bad sim port", `
name: t
api:
  base_url: http://x
channel:
  url: ws://x
sim:
  port: 80
`},
	}

	for _, c := range cases {
		if _, err := NewConfig(writeConfig(t, c.yaml)); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
}
