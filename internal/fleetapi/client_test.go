package fleetapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumenfleet/lumen-core/internal/infrastructure/config"
	"github.com/lumenfleet/lumen-core/internal/node"
	"github.com/lumenfleet/lumen-core/internal/schedule"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Fleet.BaseURL = srv.URL
	cfg.Fleet.Token = "test-token"
	cfg.Fleet.RequestTimeout = 2

	return NewClient(cfg), srv
}

func TestSnapshot(t *testing.T) {
	var gotAuth string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/lamp/state" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]node.State{
			{NodeID: "7", GatewayID: "gw-01", Power: node.PowerOn, DimLevel: 80},
			{NodeID: "8", GatewayID: "gw-01", Power: node.PowerOff},
		})
	}))

	records, err := client.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].NodeID != "7" || records[0].Power != node.PowerOn {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer token header, got %q", gotAuth)
	}
}

func TestSendCommand(t *testing.T) {
	var got commandPayload
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/lamp/control" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	power := node.PowerOn
	dim := 80
	err := client.SendCommand(context.Background(), "gw-01", "7", node.Update{
		Power:    &power,
		DimLevel: &dim,
	})
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if got.GatewayID != "gw-01" || got.NodeID != "7" {
		t.Errorf("unexpected identity in payload: %+v", got)
	}
	if got.Power == nil || *got.Power != node.PowerOn {
		t.Error("payload missing power")
	}
	if got.DimLevel == nil || *got.DimLevel != 80 {
		t.Error("payload missing dim level")
	}
}

func TestSendCommandCarriesLocationEdit(t *testing.T) {
	var got commandPayload
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	lat, lng := 51.5072, -0.1276
	err := client.SendCommand(context.Background(), "gw-01", "7", node.Update{
		Lat: &lat,
		Lng: &lng,
	})
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if got.Lat == nil || *got.Lat != lat || got.Lng == nil || *got.Lng != lng {
		t.Errorf("location edit not persisted in payload: %+v", got)
	}
	if got.Power != nil || got.DimLevel != nil {
		t.Errorf("absent fields must stay absent: %+v", got)
	}
}

func TestSendCommandGatewayReassignment(t *testing.T) {
	var got commandPayload
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	gw := "gw-02"
	err := client.SendCommand(context.Background(), "gw-01", "7", node.Update{
		GatewayID: &gw,
	})
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if got.GatewayID != "gw-02" {
		t.Errorf("commanded gateway must outrank routing default, got %q", got.GatewayID)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"bad gateway", http.StatusBadGateway, ErrUnreachable},
		{"service unavailable", http.StatusServiceUnavailable, ErrUnreachable},
		{"server error", http.StatusInternalServerError, ErrUnknown},
		{"bad request", http.StatusBadRequest, ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			power := node.PowerOn
			err := client.SendCommand(context.Background(), "gw-01", "7", node.Update{Power: &power})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUnreachableOnConnectionFailure(t *testing.T) {
	cfg := &config.Config{}
	cfg.Fleet.BaseURL = "http://127.0.0.1:1" // nothing listens here
	cfg.Fleet.RequestTimeout = 1
	client := NewClient(cfg)

	_, err := client.Snapshot(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestListSchedules(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/schedule" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode([]schedule.Entry{
			{ID: "s1", NodeID: "7", Action: schedule.ActionOn, Start: start, End: start.Add(5 * time.Minute), DimLevel: 80},
		})
	}))

	entries, err := client.ListSchedules(context.Background())
	if err != nil {
		t.Fatalf("ListSchedules failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "s1" || entries[0].Action != schedule.ActionOn {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestCreateSchedule(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var entry schedule.Entry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			t.Errorf("decode body: %v", err)
		}
		entry.ID = "assigned-id"
		json.NewEncoder(w).Encode(entry)
	}))

	created, err := client.CreateSchedule(context.Background(), schedule.Entry{
		NodeID:   "7",
		Action:   schedule.ActionOn,
		Start:    start,
		End:      start.Add(5 * time.Minute),
		DimLevel: 80,
	})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	if created.ID != "assigned-id" {
		t.Errorf("expected service-assigned ID, got %q", created.ID)
	}
}

func TestDeleteScheduleIdempotent(t *testing.T) {
	var calls int
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if calls == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		// Entry already gone on the retry.
		w.WriteHeader(http.StatusNotFound)
	}))

	if err := client.DeleteSchedule(context.Background(), "s1"); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if err := client.DeleteSchedule(context.Background(), "s1"); err != nil {
		t.Errorf("repeated delete must succeed, got %v", err)
	}
}

func TestDeleteScheduleOtherErrorsSurface(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := client.DeleteSchedule(context.Background(), "s1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
