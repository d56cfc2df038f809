// Package schedule turns stored schedule entries into node commands.
//
// The fleet service stores two kinds of entry: windowed on entries
// (node, start, end, dim) that hold a node on until their end passes,
// and one-shot off entries (node, start) that switch a node off once
// their start passes. This package owns their whole lifecycle on the
// engine side: the Reconciler polls the stored set, enforces open
// windows, turns the node off when an entry concludes, and then
// removes the spent entry from the service. A calendar projection of
// the still-pending entries backs the visualisation API.
//
// Two rules shape every decision here. Manual override always beats
// automation: an operator's change freezes a node until the next full
// snapshot. And terminal actions are exactly-once: however many ticks a
// slow delete takes, the node is commanded a single time.
package schedule
