// Package telemetry ingests node sensor reports from MQTT into the
// canonical store.
//
// Nodes publish partial state on their own topics ({prefix}/state/{id});
// the Subscriber holds one subscription per node the store knows about
// and merges each report under telemetry provenance, which never
// disturbs manual-override flags. An optional Sink forwards merged
// samples to time-series storage.
package telemetry
