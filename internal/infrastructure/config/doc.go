// Package config loads and validates Cell Core configuration.
//
// Configuration is layered: built-in defaults, then a YAML file, then
// CELLCORE_* environment variable overrides. A missing file falls back
// to defaults so a freshly imaged cell controller still boots.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    // parse or validation failure; a missing file is not an error
//	}
//
// Secrets (MQTT password, InfluxDB token) should be supplied via
// environment variables rather than committed YAML.
package config
