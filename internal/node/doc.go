// Package node provides the canonical state store for Lumen Core.
//
// The store is the single in-memory source of truth for every lighting
// node's last known state. All components that learn about the fleet
// write through it, and all components that serve fleet state read from
// it.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                         node.Store                           │
//	│                                                              │
//	│  ┌──────────────────┐           ┌──────────────────────┐    │
//	│  │  State / Update  │           │      Store           │    │
//	│  │   (types.go)     │──────────▶│    (store.go)        │    │
//	│  │                  │           │                      │    │
//	│  │ • Field merge    │           │ • Upsert / snapshot  │    │
//	│  │ • Deep equality  │           │ • Change detection   │    │
//	│  │ • Normalization  │           │ • Event fan-out      │    │
//	│  └──────────────────┘           └──────────────────────┘    │
//	└──────────────────────────────────────────────────────────────┘
//
// Writers identify themselves with a Provenance. Manual writes stamp the
// node with a manual-override marker that the schedule reconciler honors;
// telemetry and schedule writes leave the marker untouched; only a full
// snapshot (via ApplySnapshot) clears it.
//
// # Usage
//
//	store := node.NewStore()
//	store.SetLogger(log)
//
//	store.Subscribe(func(ev node.Event) {
//	    // react to observable changes only
//	})
//
//	power := node.PowerOn
//	dim := 80
//	changed, err := store.Upsert("7", node.Update{
//	    Power:    &power,
//	    DimLevel: &dim,
//	}, node.ProvenanceManual)
//
// # Thread Safety
//
// The Store is safe for concurrent use. Records are copied on read and
// write; subscriber callbacks run outside the store lock.
package node
