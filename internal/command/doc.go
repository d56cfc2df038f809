// Package command implements the outbound dispatch path for node
// control.
//
// Both human-initiated writes (REST API) and automated writes (schedule
// reconciler) flow through the Dispatcher, which enforces the same
// ordering for every command: authoritative fleet service write first,
// then a best-effort MQTT fast path, then an optimistic update of the
// canonical store. A rejected service write aborts the whole dispatch
// and leaves no trace in local state.
package command
