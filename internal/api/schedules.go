package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenfleet/lumen-core/internal/schedule"
)

// handleListSchedules returns the pending schedule set as calendar
// events, straight from the reconciler's last successful fetch.
func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	var entries []schedule.Entry
	if s.schedules != nil {
		entries = s.schedules.Pending()
	}
	events := schedule.CalendarEvents(entries)
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleCreateSchedule stores a new schedule entry via the fleet
// service. The reconciler picks it up on its next tick.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeError(w, http.StatusNotImplemented, ErrCodeInternal, "schedule writes not configured")
		return
	}

	var entry schedule.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeBadRequest(w, "invalid schedule body: "+err.Error())
		return
	}
	if entry.Action == schedule.ActionOn && entry.DimLevel == 0 {
		entry.DimLevel = s.defaultDim
	}
	if err := entry.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	created, err := s.backend.CreateSchedule(r.Context(), entry)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleDeleteSchedule removes a schedule entry via the fleet service.
// Removal is idempotent; deleting an unknown entry succeeds.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeError(w, http.StatusNotImplemented, ErrCodeInternal, "schedule writes not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.backend.DeleteSchedule(r.Context(), id); err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
