package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/lumenfleet/lumen-core/internal/command"
	"github.com/lumenfleet/lumen-core/internal/node"
)

// nodeEventPayload shapes a store event for WebSocket clients.
func nodeEventPayload(ev node.Event) map[string]any {
	return map[string]any{
		"event": string(ev.Type),
		"node":  ev.State,
	}
}

// handleListNodes returns every known node, sorted by node ID.
func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	all := s.store.All()
	nodes := make([]node.State, 0, len(all))
	for _, st := range all {
		nodes = append(nodes, st)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].NodeID < nodes[j].NodeID })

	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// handleGetNode returns one node's current state.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := s.store.Lookup(id)
	if err != nil {
		if errors.Is(err, node.ErrNodeNotFound) {
			writeNotFound(w, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleNodeCommand dispatches a manual desired-state change.
//
// The body carries the wire-format command fields (lamp_state,
// lamp_dim). An ON command without a dim level gets the configured
// default. The dispatch runs under manual provenance, so the node is
// flagged as operator-overridden until the next full snapshot.
func (s *Server) handleNodeCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var update node.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, "invalid command body: "+err.Error())
		return
	}

	if update.Power != nil && *update.Power == node.PowerOn && update.DimLevel == nil {
		dim := s.defaultDim
		update.DimLevel = &dim
	}

	err := s.dispatcher.Dispatch(r.Context(), id, update, node.ProvenanceManual)
	if err != nil {
		switch {
		case errors.Is(err, node.ErrEmptyNodeID),
			errors.Is(err, node.ErrInvalidPower),
			errors.Is(err, node.ErrInvalidDimLevel),
			errors.Is(err, command.ErrEmptyCommand):
			writeBadRequest(w, err.Error())
		default:
			writeDispatchError(w, err)
		}
		return
	}

	st, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, st)
}
