// Package mqtt provides the MQTT telemetry connection for Cell Core.
//
// The cell publishes machine state (retained) and operation events to a
// broker so dashboards and shop-floor tooling can follow the cell
// without polling the HTTP API. The cell never subscribes; commands
// arrive over HTTP only.
//
// Connection loss is handled by paho's auto-reconnect with exponential
// backoff, and a Last Will marks the cell offline when the link drops.
package mqtt
