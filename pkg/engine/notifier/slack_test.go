package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aegis-scan/aegis/pkg/scan"
)

func TestNotifyScanCompleteSkipsRequestWhenWebhookEmpty(t *testing.T) {
	client := NewSlackClient("", "")
	if err := client.NotifyScanComplete("acme", scan.IncidentReport{}); err != nil {
		t.Fatalf("expected nil error for disabled notifier, got %v", err)
	}
}

func TestNotifyScanCompletePostsSummary(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewSlackClient(srv.URL, "#security")
	report := scan.IncidentReport{
		ExecutiveSummary: "Brute force attack detected",
		SeverityCounts:   map[string]int{"critical": 1, "high": 2},
	}

	if err := client.NotifyScanComplete("acme", report); err != nil {
		t.Fatalf("NotifyScanComplete: %v", err)
	}
	if received["channel"] != "#security" {
		t.Errorf("expected channel override in payload, got %+v", received)
	}
	if _, ok := received["blocks"]; !ok {
		t.Errorf("expected blocks in payload, got %+v", received)
	}
}

func TestNotifyScanCompleteReturnsErrorOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewSlackClient(srv.URL, "")
	if err := client.NotifyScanComplete("acme", scan.IncidentReport{}); err == nil {
		t.Error("expected error on non-200 response")
	}
}
