package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// A missing config file is not an error; the cell boots on defaults.
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Cell.ID == "" {
		t.Error("default cell id is empty")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("default api port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Cameras.ProbeRange != 5 {
		t.Errorf("default probe range = %d, want 5", cfg.Cameras.ProbeRange)
	}
	if cfg.Cameras.Width != 640 || cfg.Cameras.Height != 480 {
		t.Errorf("default capture size = %dx%d, want 640x480", cfg.Cameras.Width, cfg.Cameras.Height)
	}
	if cfg.Gantry.BaseURL == "" {
		t.Error("default gantry base url is empty")
	}
	if cfg.MQTT.Enabled {
		t.Error("mqtt enabled by default")
	}
	if cfg.InfluxDB.Enabled {
		t.Error("influxdb enabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
cell:
  id: cell-test
api:
  port: 9090
cameras:
  probe_range: 2
  simulated: true
gantry:
  base_url: http://10.0.0.5/printer/gcode/script
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Cell.ID != "cell-test" {
		t.Errorf("cell id = %q", cfg.Cell.ID)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("api port = %d", cfg.API.Port)
	}
	if !cfg.Cameras.Simulated {
		t.Error("cameras.simulated not applied")
	}
	if cfg.Gantry.BaseURL != "http://10.0.0.5/printer/gcode/script" {
		t.Errorf("gantry url = %q", cfg.Gantry.BaseURL)
	}

	// Unset values keep their defaults.
	if cfg.Cameras.Width != 640 {
		t.Errorf("cameras.width = %d, want default 640", cfg.Cameras.Width)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CELLCORE_API_PORT", "7070")
	t.Setenv("CELLCORE_GANTRY_URL", "http://gantry.local/printer/gcode/script")
	t.Setenv("CELLCORE_CAMERAS_SIMULATED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Port != 7070 {
		t.Errorf("api port = %d, want env override 7070", cfg.API.Port)
	}
	if cfg.Gantry.BaseURL != "http://gantry.local/printer/gcode/script" {
		t.Errorf("gantry url = %q", cfg.Gantry.BaseURL)
	}
	if !cfg.Cameras.Simulated {
		t.Error("CELLCORE_CAMERAS_SIMULATED not applied")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: [not a map"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load should fail on malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "missing cell id",
			mutate:  func(c *Config) { c.Cell.ID = "" },
			wantErr: "cell.id",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "zero probe range",
			mutate:  func(c *Config) { c.Cameras.ProbeRange = 0 },
			wantErr: "probe_range",
		},
		{
			name:    "missing gantry url",
			mutate:  func(c *Config) { c.Gantry.BaseURL = "" },
			wantErr: "gantry.base_url",
		},
		{
			name:    "missing state file",
			mutate:  func(c *Config) { c.Factory.StateFile = "" },
			wantErr: "factory.state_file",
		},
		{
			name: "mqtt enabled without host",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Host = ""
			},
			wantErr: "mqtt.host",
		},
		{
			name: "influxdb enabled without bucket",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
				c.InfluxDB.Bucket = ""
			},
			wantErr: "influxdb.bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
