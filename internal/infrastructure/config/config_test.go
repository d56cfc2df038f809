package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
fleet:
  base_url: "http://fleet.example.com:5000"
  token: "test-token"
  snapshot_interval: 15
mqtt:
  broker:
    host: "broker.example.com"
    port: 1883
    client_id: "lumen-test"
  qos: 1
  topic_prefix: "lamp"
engine:
  reconcile_tick: 5
  default_dim: 80
api:
  host: "0.0.0.0"
  port: 8080
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fleet.BaseURL != "http://fleet.example.com:5000" {
		t.Errorf("Fleet.BaseURL = %q, want %q", cfg.Fleet.BaseURL, "http://fleet.example.com:5000")
	}
	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.example.com")
	}
	if cfg.Engine.DefaultDim != 80 {
		t.Errorf("Engine.DefaultDim = %d, want 80", cfg.Engine.DefaultDim)
	}
	if got := cfg.GetSnapshotInterval(); got != 15*time.Second {
		t.Errorf("GetSnapshotInterval() = %v, want 15s", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Minimal file: everything else should come from defaults.
	cfg, err := Load(writeConfig(t, "fleet:\n  token: \"t\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.ReconcileTick != 10 {
		t.Errorf("Engine.ReconcileTick = %d, want default 10", cfg.Engine.ReconcileTick)
	}
	if cfg.MQTT.TopicPrefix != "lamp" {
		t.Errorf("MQTT.TopicPrefix = %q, want default %q", cfg.MQTT.TopicPrefix, "lamp")
	}
	if cfg.MQTT.Broker.ClientID != "lumen-core" {
		t.Errorf("MQTT.Broker.ClientID = %q, want default %q", cfg.MQTT.Broker.ClientID, "lumen-core")
	}
	if cfg.Engine.DefaultDim != 50 {
		t.Errorf("Engine.DefaultDim = %d, want default 50", cfg.Engine.DefaultDim)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LUMEN_FLEET_TOKEN", "env-token")
	t.Setenv("LUMEN_MQTT_HOST", "env-broker")

	cfg, err := Load(writeConfig(t, "fleet:\n  token: \"file-token\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fleet.Token != "env-token" {
		t.Errorf("Fleet.Token = %q, want env override %q", cfg.Fleet.Token, "env-token")
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "env-broker")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "empty base URL",
			modify:  func(c *Config) { c.Fleet.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "trailing slash base URL",
			modify:  func(c *Config) { c.Fleet.BaseURL = "http://localhost:5000/" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "topic prefix with wildcard",
			modify:  func(c *Config) { c.MQTT.TopicPrefix = "lamp/#" },
			wantErr: true,
		},
		{
			name:    "zero reconcile tick",
			modify:  func(c *Config) { c.Engine.ReconcileTick = 0 },
			wantErr: true,
		},
		{
			name:    "default dim out of range",
			modify:  func(c *Config) { c.Engine.DefaultDim = 150 },
			wantErr: true,
		},
		{
			name:    "invalid API port",
			modify:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
