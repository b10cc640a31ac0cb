package db

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHealthResponse_JSON(t *testing.T) {
	resp := HealthResponse{
		Status: "healthy",
		Pool: &PoolStats{
			TotalConns:      4,
			IdleConns:       3,
			AcquiredConns:   1,
			MaxConns:        10,
			AcquireCount:    50,
			AcquireDuration: "250ms",
			Healthy:         true,
		},
	}

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(b)
	for _, want := range []string{`"status":"healthy"`, `"total_conns":4`, `"acquire_duration":"250ms"`, `"healthy":true`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, `"error"`) {
		t.Errorf("expected error to be omitted when empty: %s", out)
	}
}

func TestHealthResponse_Unhealthy(t *testing.T) {
	b, err := json.Marshal(HealthResponse{Status: "unhealthy", Error: "connection refused", Pool: &PoolStats{MaxConns: 10}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"error":"connection refused"`) {
		t.Errorf("expected error in body: %s", b)
	}
}
