package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteNodeTelemetry writes one sensor sample for a lighting node.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - nodeID: Node identifier (e.g., "7")
//   - gatewayID: Gateway the node reports through
//   - lux: Ambient light level
//   - currentA: Lamp current draw in amperes
//   - dimLevel: Commanded dim level, 0-100
func (c *Client) WriteNodeTelemetry(nodeID, gatewayID string, lux, currentA float64, dimLevel int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"node_telemetry",
		map[string]string{
			"node_id": nodeID,
			"gw_id":   gatewayID,
		},
		map[string]interface{}{
			"lux":       lux,
			"current_a": currentA,
			"lamp_dim":  dimLevel,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEnergyMetric writes a node's cumulative energy counter.
//
// Parameters:
//   - nodeID: Node identifier
//   - energyKWh: Cumulative energy consumption in kWh
func (c *Client) WriteEnergyMetric(nodeID string, energyKWh float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"energy",
		map[string]string{
			"node_id": nodeID,
		},
		map[string]interface{}{
			"energy_kwh": energyKWh,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
