package telemetry

import (
	"github.com/lumenfleet/lumen-core/internal/infrastructure/influxdb"
	"github.com/lumenfleet/lumen-core/internal/node"
)

// InfluxSink records merged telemetry samples into InfluxDB.
//
// Writes are batched and non-blocking inside the influxdb client, so
// recording from the MQTT message path is safe.
type InfluxSink struct {
	client *influxdb.Client
}

// NewInfluxSink creates a sink backed by a connected influxdb client.
func NewInfluxSink(client *influxdb.Client) *InfluxSink {
	return &InfluxSink{client: client}
}

// Record writes the sample's sensor readings and energy counter.
func (s *InfluxSink) Record(st node.State) {
	s.client.WriteNodeTelemetry(st.NodeID, st.GatewayID, st.Lux, st.CurrentA, st.DimLevel)
	if st.EnergyConsumed > 0 {
		s.client.WriteEnergyMetric(st.NodeID, st.EnergyConsumed)
	}
}
