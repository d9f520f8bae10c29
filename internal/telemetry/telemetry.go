package telemetry

import (
	"encoding/json"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxapi "github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/fabworks/cell-core/internal/infrastructure/config"
	"github.com/fabworks/cell-core/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher fans cell telemetry out to the optional MQTT and InfluxDB
// sinks: retained machine state and operation events on MQTT, pose and
// operation time series in InfluxDB.
//
// A nil *Publisher is a valid no-op, so callers never branch on whether
// telemetry is configured. Publishing is bounded by the underlying
// clients' own timeouts and never fails the operation being reported.
type Publisher struct {
	cellID string
	mqtt   *mqtt.Client
	influx influxdb2.Client
	write  influxapi.WriteAPI
	logger Logger
}

// New creates a telemetry publisher.
//
// mqttClient may be nil (MQTT disabled). The InfluxDB client is created
// here when enabled; writes are batched asynchronously and flushed on
// Close. Write errors are drained to the logger.
func New(cellID string, mqttClient *mqtt.Client, influxCfg config.InfluxDBConfig, logger Logger) *Publisher {
	p := &Publisher{
		cellID: cellID,
		mqtt:   mqttClient,
		logger: logger,
	}

	if influxCfg.Enabled {
		p.influx = influxdb2.NewClient(influxCfg.URL, influxCfg.Token)
		p.write = p.influx.WriteAPI(influxCfg.Org, influxCfg.Bucket)

		go func() {
			for err := range p.write.Errors() {
				logger.Warn("influxdb write failed", "error", err)
			}
		}()
	}

	return p
}

// MachineState publishes a retained machine state document to MQTT.
func (p *Publisher) MachineState(machineName string, state any) {
	if p == nil || p.mqtt == nil {
		return
	}

	payload, err := json.Marshal(state)
	if err != nil {
		p.logger.Error("encoding machine state", "machine", machineName, "error", err)
		return
	}
	if err := p.mqtt.PublishRetained(mqtt.Topics{}.MachineState(machineName), payload); err != nil {
		p.logger.Warn("publishing machine state", "machine", machineName, "error", err)
	}
}

// JobEvent publishes a job execution event to MQTT and InfluxDB.
func (p *Publisher) JobEvent(jobID, machineName, action string, runErr error) {
	if p == nil {
		return
	}

	outcome := "ok"
	if runErr != nil {
		outcome = runErr.Error()
	}

	if p.mqtt != nil {
		payload, err := json.Marshal(map[string]string{
			"cell":    p.cellID,
			"job":     jobID,
			"machine": machineName,
			"action":  action,
			"outcome": outcome,
		})
		if err == nil {
			if err := p.mqtt.PublishEvent(mqtt.Topics{}.Event("job"), payload); err != nil {
				p.logger.Warn("publishing job event", "job", jobID, "error", err)
			}
		}
	}

	if p.write != nil {
		point := influxdb2.NewPoint("operation",
			map[string]string{"cell": p.cellID, "machine": machineName, "kind": "job"},
			map[string]any{"job": jobID, "action": action, "ok": runErr == nil},
			time.Now(),
		)
		p.write.WritePoint(point)
	}
}

// PoseSample records a gantry pose in InfluxDB.
func (p *Publisher) PoseSample(machineName string, x, y, z, a float64) {
	if p == nil || p.write == nil {
		return
	}

	point := influxdb2.NewPoint("pose",
		map[string]string{"cell": p.cellID, "machine": machineName},
		map[string]any{"x": x, "y": y, "z": z, "a": a},
		time.Now(),
	)
	p.write.WritePoint(point)
}

// Operation records a discrete machine operation (screw, unlock, home)
// in InfluxDB and as an MQTT event.
func (p *Publisher) Operation(machineName, op string, ok bool) {
	if p == nil {
		return
	}

	if p.mqtt != nil {
		payload, err := json.Marshal(map[string]any{
			"cell":    p.cellID,
			"machine": machineName,
			"op":      op,
			"ok":      ok,
		})
		if err == nil {
			if err := p.mqtt.PublishEvent(mqtt.Topics{}.Event("machine"), payload); err != nil {
				p.logger.Warn("publishing operation event", "machine", machineName, "op", op, "error", err)
			}
		}
	}

	if p.write != nil {
		point := influxdb2.NewPoint("operation",
			map[string]string{"cell": p.cellID, "machine": machineName, "kind": "command"},
			map[string]any{"op": op, "ok": ok},
			time.Now(),
		)
		p.write.WritePoint(point)
	}
}

// Close flushes pending InfluxDB writes and releases the client.
// The MQTT client is owned by the caller and not closed here.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.write != nil {
		p.write.Flush()
	}
	if p.influx != nil {
		p.influx.Close()
	}
}
