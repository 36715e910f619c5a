package db

import (
	"net/http"
	"testing"

	"github.com/kestrel-optics/exposure.report/internal/testutil"
)

func TestAttachAdminRoutes(t *testing.T) {
	db := setupTestDB(t)

	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	// Debug access is gated by client address, so the exact status
	// varies; registration is what matters here.
	for _, path := range []string{"/debug/", "/debug/backup", "/debug/tailsql/"} {
		rec := testutil.NewTestRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest("GET", path))
		if rec.Code == http.StatusNotFound {
			t.Errorf("%s not registered", path)
		}
	}
}
