package runtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/myrc-project/myrc/internal/config"
	"github.com/myrc-project/myrc/pkg/logger"
)

func TestHealthWithoutDatabase(t *testing.T) {
	rt := &Application{cfg: config.Default(), log: logger.NewDefault("test")}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	rt.health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}

	var report map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode health report: %v", err)
	}
	if report["status"] != "ok" {
		t.Fatalf("status %v, want ok", report["status"])
	}
	if report["database"] != "memory" {
		t.Fatalf("database %v, want memory", report["database"])
	}
}

func TestHealthRejectsNonGet(t *testing.T) {
	rt := &Application{cfg: config.Default(), log: logger.NewDefault("test")}

	rec := httptest.NewRecorder()
	rt.health(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST health returned %d", rec.Code)
	}
}
