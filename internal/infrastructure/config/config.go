package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Cell Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cell      CellConfig      `yaml:"cell"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Cameras   CameraConfig    `yaml:"cameras"`
	Gantry    GantryConfig    `yaml:"gantry"`
	Actuator  ActuatorConfig  `yaml:"actuator"`
	Factory   FactoryConfig   `yaml:"factory"`
}

// CellConfig contains cell-specific identification.
type CellConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
//
// The write timeout is deliberately generous: MJPEG stream responses stay
// open for the lifetime of the viewer, so it only bounds non-stream writes.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket event hub settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite settings for the audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for telemetry.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// CameraConfig contains capture settings shared by all camera sessions.
//
// Width, height and the MJPG pixel format are fixed low to keep several
// cameras stable on one USB bus; raising them reintroduces kernel-level
// read timeouts when sessions run concurrently.
type CameraConfig struct {
	ProbeRange   int  `yaml:"probe_range"`   // device indices probed: [0, probe_range)
	Width        int  `yaml:"width"`         // capture width in pixels
	Height       int  `yaml:"height"`        // capture height in pixels
	ReadTimeout  int  `yaml:"read_timeout"`  // per-frame read timeout, seconds
	StopTimeout  int  `yaml:"stop_timeout"`  // bounded wait for capture loop exit, milliseconds
	ReopenGrace  int  `yaml:"reopen_grace"`  // delay after close before reopen, milliseconds
	RetryBackoff int  `yaml:"retry_backoff"` // sleep after a transient read failure, milliseconds
	FrameDivider int  `yaml:"frame_divider"` // stream pacing interval, milliseconds
	Simulated    bool `yaml:"simulated"`     // force the simulated backend
}

// GantryConfig contains motion controller transport settings.
type GantryConfig struct {
	BaseURL        string `yaml:"base_url"`        // controller script endpoint, e.g. http://192.168.1.60/printer/gcode/script
	RequestTimeout int    `yaml:"request_timeout"` // per-command HTTP timeout, seconds
}

// ActuatorConfig contains GPIO pin assignments for the screwdriver and lock.
type ActuatorConfig struct {
	DirPin    string `yaml:"dir_pin"`
	PWMPin    string `yaml:"pwm_pin"`
	LockPin   string `yaml:"lock_pin"`
	PWMFreq   int    `yaml:"pwm_freq"`  // pulse-width frequency in Hz
	Simulated bool   `yaml:"simulated"` // force the simulated outputs
}

// FactoryConfig contains paths for persisted factory state.
type FactoryConfig struct {
	StateFile string `yaml:"state_file"`
	JobsFile  string `yaml:"jobs_file"`
	PartsFile string `yaml:"parts_file"`
}

// Load reads configuration from a YAML file with environment overrides.
//
// The load order is: built-in defaults, then the YAML file, then
// CELLCORE_* environment variables. A missing config file is not an
// error; the cell boots on defaults so a bare device still comes up.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be parsed or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only. Callers log this.
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cell: CellConfig{
			ID:   "cell-001",
			Name: "Cell Core",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 0, // streams stay open indefinitely
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Path:        "./data/cellcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "cellcore",
			QoS:      1,
		},
		Cameras: CameraConfig{
			ProbeRange:   5,
			Width:        640,
			Height:       480,
			ReadTimeout:  5,
			StopTimeout:  1000,
			ReopenGrace:  250,
			RetryBackoff: 100,
			FrameDivider: 50,
		},
		Gantry: GantryConfig{
			BaseURL:        "http://192.168.1.60/printer/gcode/script",
			RequestTimeout: 5,
		},
		Actuator: ActuatorConfig{
			DirPin:  "GPIO20",
			PWMPin:  "GPIO21",
			LockPin: "GPIO16",
			PWMFreq: 1000,
		},
		Factory: FactoryConfig{
			StateFile: "./data/factory.json",
			JobsFile:  "./data/jobs.json",
			PartsFile: "./data/parts.json",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CELLCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CELLCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CELLCORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("CELLCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CELLCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("CELLCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("CELLCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("CELLCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("CELLCORE_GANTRY_URL"); v != "" {
		cfg.Gantry.BaseURL = v
	}
	if v := os.Getenv("CELLCORE_FACTORY_STATE_FILE"); v != "" {
		cfg.Factory.StateFile = v
	}
	if v := os.Getenv("CELLCORE_CAMERAS_SIMULATED"); v != "" {
		cfg.Cameras.Simulated = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CELLCORE_ACTUATOR_SIMULATED"); v != "" {
		cfg.Actuator.Simulated = v == "1" || strings.EqualFold(v, "true")
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Cell.ID == "" {
		errs = append(errs, "cell.id is required")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d out of range", c.API.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Cameras.ProbeRange < 1 {
		errs = append(errs, "cameras.probe_range must be at least 1")
	}
	if c.Cameras.Width < 1 || c.Cameras.Height < 1 {
		errs = append(errs, "cameras.width and cameras.height must be positive")
	}
	if c.Gantry.BaseURL == "" {
		errs = append(errs, "gantry.base_url is required")
	}
	if c.Actuator.PWMFreq < 1 {
		errs = append(errs, "actuator.pwm_freq must be positive")
	}
	if c.Factory.StateFile == "" {
		errs = append(errs, "factory.state_file is required")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			errs = append(errs, "mqtt.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Sprintf("mqtt.qos %d out of range", c.MQTT.QoS))
		}
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
