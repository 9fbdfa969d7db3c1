package server

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestExportPainLogsCSV(t *testing.T) {
	resetDatabase(t)
	userID := seedUser(t, "")
	seedSettings(t, userID, "Asia/Seoul", "")
	seedPainLog(t, userID, time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC), intPtr(6), "Ibuprofen")
	seedPainLog(t, userID, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC), nil)

	other := seedUser(t, "")
	seedPainLog(t, other, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), intPtr(2))

	rec := performRequest(
		t,
		newTestRouter(t),
		http.MethodGet,
		"/api/v1/export/pain-logs.csv",
		signToken(t, userID, nil),
		nil,
		nil,
	)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	if contentType := rec.Header().Get("Content-Type"); !strings.Contains(contentType, "text/csv") {
		t.Fatalf("expected text/csv content type, got %q", contentType)
	}
	if disposition := rec.Header().Get("Content-Disposition"); !strings.Contains(disposition, "paintrack_export_") {
		t.Fatalf("unexpected content disposition %q", disposition)
	}

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v body=%s", err, rec.Body.String())
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus the caller's two rows, got %d", len(records))
	}
	// 16:00 UTC is 01:00 the next day in Seoul.
	if records[1][2] != "2026-03-02" || records[1][3] != "01:00" {
		t.Fatalf("expected Seoul local date/time, got %v", records[1])
	}
	if records[1][7] != "Ibuprofen" || records[2][4] != "" {
		t.Fatalf("unexpected rows: %v", records[1:])
	}
}
