package monitor

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMemoryDriverOmitsUnconfiguredBackends(t *testing.T) {
	m := New("memory", nil, nil, time.Second, nil)
	m.refresh()

	status := m.GetStatus()
	if status.PostgreSQL != nil || status.Redis != nil {
		t.Errorf("unconfigured backends must be absent, got %+v", status)
	}
	if status.Driver != "memory" {
		t.Errorf("driver = %q, want memory", status.Driver)
	}
	if status.LastCheck.IsZero() {
		t.Error("last check not stamped")
	}
	if !m.IsOnline() {
		t.Error("memory driver with no backends must be online")
	}

	payload, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(payload), "postgresql") || strings.Contains(string(payload), "redis") {
		t.Errorf("health payload mentions unconfigured backends: %s", payload)
	}
}
