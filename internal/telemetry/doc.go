// Package telemetry publishes cell activity to external observers.
//
// Two sinks, both optional: MQTT for live dashboards (retained machine
// state plus job and operation events) and InfluxDB for time series
// (pose samples, operation outcomes). A nil Publisher is a safe no-op,
// so the rest of the codebase reports telemetry unconditionally.
package telemetry
