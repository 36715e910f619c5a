package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kestrel-optics/exposure.report/internal/vision"
	"github.com/kestrel-optics/exposure.report/internal/vision/l1tensor"
	"github.com/kestrel-optics/exposure.report/internal/vision/l5meter"
	"github.com/kestrel-optics/exposure.report/internal/vision/pipeline"
)

func newTestServer(t *testing.T) (*WebServer, *pipeline.Analyzer) {
	t.Helper()
	analyzer, err := pipeline.NewAnalyzer(pipeline.Config{
		Engine: l5meter.NewEngine(l5meter.DefaultParams()),
		Labels: l1tensor.NewLabelTable([]string{"sky", "person"}),
	})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	ws := NewWebServer(WebServerConfig{
		Address:   ":0",
		Analyzer:  analyzer,
		Plotter:   NewMeterPlotter(0),
		SessionID: "test-session",
	})
	return ws, analyzer
}

// submitAnalyzedFrame drives one frame through the analyzer so Latest()
// and Meter() are populated.
func submitAnalyzedFrame(t *testing.T, analyzer *pipeline.Analyzer) {
	t.Helper()

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	analyzer.Start(ctx)

	w, h := 96, 96
	stride := w * 4
	pixels := make([]byte, h*stride)
	for i := range pixels {
		pixels[i] = 118
		if i%4 == 3 {
			pixels[i] = 255
		}
	}
	raster := make([]byte, 48*48)
	for i := range raster {
		if i%48 < 24 {
			raster[i] = 1
		}
	}

	go func() {
		defer close(done)
		for analyzer.Latest() == nil {
			time.Sleep(10 * time.Millisecond)
		}
	}()

	analyzer.Submit(&pipeline.Frame{
		Seq:    1,
		Time:   time.Now(),
		Buffer: &vision.FrameBuffer{Width: w, Height: h, Stride: stride, Pixels: pixels},
		Crop:   vision.FullFrame(),
		Device: vision.ExposureTriple{ApertureN: 2.8, ShutterS: 1.0 / 125.0, ISO: 100},
		Model: &l1tensor.ModelOutput{
			Raster: &l1tensor.ByteRaster{Width: 48, Height: 48, Stride: 48, Data: raster},
		},
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for frame analysis")
	}
}

func TestHandleHealth(t *testing.T) {
	ws, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	ws.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse health response: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "exposure" {
		t.Errorf("Unexpected health body: %v", body)
	}
}

func TestHandleAPIStatusEmpty(t *testing.T) {
	ws, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	ws.handleAPIStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse status response: %v", err)
	}
	if body["session_id"] != "test-session" {
		t.Errorf("session_id = %v, want test-session", body["session_id"])
	}
}

func TestHandleAPIFrameNotFound(t *testing.T) {
	ws, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/frame", nil)
	rec := httptest.NewRecorder()
	ws.handleAPIFrame(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404 before any analysis", rec.Code)
	}
}

func TestHandleOverlayNotFound(t *testing.T) {
	ws, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/overlay.png", nil)
	rec := httptest.NewRecorder()
	ws.handleOverlay(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404 before any analysis", rec.Code)
	}
}

func TestHandleZoneChartNotFound(t *testing.T) {
	ws, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/charts/zones", nil)
	rec := httptest.NewRecorder()
	ws.handleZoneChart(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404 before any metering", rec.Code)
	}
}

func TestEndpointsAfterAnalysis(t *testing.T) {
	ws, analyzer := newTestServer(t)
	submitAnalyzedFrame(t, analyzer)

	t.Run("api frame", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/frame", nil)
		rec := httptest.NewRecorder()
		ws.handleAPIFrame(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rec.Code)
		}
		var res pipeline.FrameAnalysis
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("Failed to parse frame response: %v", err)
		}
		if res.Seq != 1 {
			t.Errorf("Seq = %d, want 1", res.Seq)
		}
	})

	t.Run("overlay png", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/overlay.png", nil)
		rec := httptest.NewRecorder()
		ws.handleOverlay(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q, want image/png", ct)
		}
		// PNG magic
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Error("Response body is not a PNG")
		}
	})

	t.Run("zone chart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/charts/zones", nil)
		rec := httptest.NewRecorder()
		ws.handleZoneChart(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rec.Code)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte("echarts")) {
			t.Error("Expected an echarts document")
		}
	})

	t.Run("coverage chart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/charts/coverage", nil)
		rec := httptest.NewRecorder()
		ws.handleCoverageChart(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rec.Code)
		}
	})

	t.Run("status page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		ws.handleStatus(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rec.Code)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte("test-session")) {
			t.Error("Status page missing session ID")
		}
	})
}

func TestMeterPlotter(t *testing.T) {
	mp := NewMeterPlotter(3)

	if err := mp.WritePNG(&bytes.Buffer{}); err == nil {
		t.Error("Expected error with no samples, got nil")
	}

	for i := 0; i < 5; i++ {
		mp.Record(&pipeline.FrameAnalysis{
			Scene: &l5meter.SceneResult{EV100: 12 + float64(i)},
			Zonal: &l5meter.ZonalResult{DeltaEV: -0.1 * float64(i)},
		})
	}
	if mp.Len() != 3 {
		t.Errorf("Len = %d, want 3 (capped)", mp.Len())
	}

	var buf bytes.Buffer
	if err := mp.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("Output is not a PNG")
	}
}

func TestMeterPlotterIgnoresNil(t *testing.T) {
	mp := NewMeterPlotter(0)
	mp.Record(nil)
	mp.Record(&pipeline.FrameAnalysis{}) // no scene metering
	if mp.Len() != 0 {
		t.Errorf("Len = %d, want 0", mp.Len())
	}
}
