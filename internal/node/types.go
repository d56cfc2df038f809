package node

import "time"

// Power is the on/off state of a lighting node.
// Values match the wire format the nodes and the fleet service use.
type Power string

// Power constants.
const (
	PowerOn  Power = "ON"
	PowerOff Power = "OFF"
)

// Valid reports whether p is a recognised power value.
func (p Power) Valid() bool {
	return p == PowerOn || p == PowerOff
}

// Provenance identifies the source of a state mutation.
//
// Manual writes carry special weight: they set the node's manual-override
// flag, which suppresses schedule automation until the next full snapshot
// clears it.
type Provenance string

// Provenance constants.
const (
	ProvenanceManual    Provenance = "manual"
	ProvenanceSchedule  Provenance = "schedule"
	ProvenanceTelemetry Provenance = "telemetry"
	ProvenanceSnapshot  Provenance = "snapshot"
)

// State is the full record for one lighting node.
//
// JSON field names follow the fleet service wire format (node firmware and
// the /api/lamp endpoints use the same names).
type State struct {
	// Identity
	NodeID    string `json:"node_id"`
	GatewayID string `json:"gw_id"`

	// Commanded state. DimLevel is meaningful only when Power is ON and
	// is held at 0 while the node is OFF.
	Power    Power `json:"lamp_state"`
	DimLevel int   `json:"lamp_dim"`

	// Last reported telemetry. Zero until the node's first report.
	Lux      float64 `json:"lux"`
	CurrentA float64 `json:"current_a"`

	// Optional installed location.
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`

	// EnergyConsumed is a monotonically non-decreasing counter (kWh).
	EnergyConsumed float64 `json:"energy_consumed"`

	// ManualOverride marks that the most recent authoritative change came
	// from a human operator. Set only by manual-provenance upserts; cleared
	// only by a snapshot merge.
	ManualOverride   bool       `json:"manual_override"`
	ManualOverrideAt *time.Time `json:"manual_override_at,omitempty"`
}

// Clone returns an independent copy of the State.
// Pointer fields are duplicated so modifications to the copy do not
// affect the original. This is essential for store isolation.
func (s State) Clone() State {
	cpy := s
	if s.Lat != nil {
		v := *s.Lat
		cpy.Lat = &v
	}
	if s.Lng != nil {
		v := *s.Lng
		cpy.Lng = &v
	}
	if s.ManualOverrideAt != nil {
		v := *s.ManualOverrideAt
		cpy.ManualOverrideAt = &v
	}
	return cpy
}

// Equal reports deep, field-by-field equality with another State.
// Pointer fields compare by pointed-to value, not identity.
func (s State) Equal(o State) bool {
	if s.NodeID != o.NodeID ||
		s.GatewayID != o.GatewayID ||
		s.Power != o.Power ||
		s.DimLevel != o.DimLevel ||
		s.Lux != o.Lux ||
		s.CurrentA != o.CurrentA ||
		s.EnergyConsumed != o.EnergyConsumed ||
		s.ManualOverride != o.ManualOverride {
		return false
	}
	if !floatPtrEqual(s.Lat, o.Lat) || !floatPtrEqual(s.Lng, o.Lng) {
		return false
	}
	return timePtrEqual(s.ManualOverrideAt, o.ManualOverrideAt)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Update is a partial state change. Only non-nil fields are applied.
//
// The same structure serves as the command payload on both transports:
// the fleet service's POST body and the per-node MQTT command topic.
type Update struct {
	GatewayID      *string  `json:"gw_id,omitempty"`
	Power          *Power   `json:"lamp_state,omitempty"`
	DimLevel       *int     `json:"lamp_dim,omitempty"`
	Lux            *float64 `json:"lux,omitempty"`
	CurrentA       *float64 `json:"current_a,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`
	EnergyConsumed *float64 `json:"energy_consumed,omitempty"`
}

// Validate checks the update's fields for range and value errors.
func (u Update) Validate() error {
	if u.Power != nil && !u.Power.Valid() {
		return ErrInvalidPower
	}
	if u.DimLevel != nil && (*u.DimLevel < 0 || *u.DimLevel > 100) {
		return ErrInvalidDimLevel
	}
	return nil
}

// IsZero reports whether the update carries no fields at all.
func (u Update) IsZero() bool {
	return u.GatewayID == nil && u.Power == nil && u.DimLevel == nil &&
		u.Lux == nil && u.CurrentA == nil && u.Lat == nil && u.Lng == nil &&
		u.EnergyConsumed == nil
}

// applyTo merges the update's non-nil fields into st, enforcing the
// record invariants: dim forced to 0 while OFF, energy never decreasing.
func (u Update) applyTo(st *State) {
	if u.GatewayID != nil {
		st.GatewayID = *u.GatewayID
	}
	if u.Power != nil {
		st.Power = *u.Power
	}
	if u.DimLevel != nil {
		st.DimLevel = *u.DimLevel
	}
	if u.Lux != nil {
		st.Lux = *u.Lux
	}
	if u.CurrentA != nil {
		st.CurrentA = *u.CurrentA
	}
	if u.Lat != nil {
		v := *u.Lat
		st.Lat = &v
	}
	if u.Lng != nil {
		v := *u.Lng
		st.Lng = &v
	}
	if u.EnergyConsumed != nil && *u.EnergyConsumed > st.EnergyConsumed {
		st.EnergyConsumed = *u.EnergyConsumed
	}
	if st.Power == PowerOff {
		st.DimLevel = 0
	}
}

// Normalize enforces record invariants on a full state record
// (used for snapshot rows arriving from the fleet service).
func (s *State) Normalize() {
	if s.Power == PowerOff {
		s.DimLevel = 0
	}
}
