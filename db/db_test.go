package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrel-optics/exposure.report/internal/vision/l3subject"
	"github.com/kestrel-optics/exposure.report/internal/vision/l4overlay"
	"github.com/kestrel-optics/exposure.report/internal/vision/l5meter"
	"github.com/kestrel-optics/exposure.report/internal/vision/pipeline"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleAnalysis(seq uint64) *pipeline.FrameAnalysis {
	return &pipeline.FrameAnalysis{
		Seq:     seq,
		Time:    time.Now(),
		Width:   48,
		Height:  48,
		Subject: l3subject.Choice{Class: 1, Name: "person", Score: 0.42},
		Coverage: []l4overlay.ClassCoverage{
			{Name: "person", Percent: 60, Class: 1},
			{Name: "sky", Percent: 40, Class: 0},
		},
		Scene: &l5meter.SceneResult{
			EV100: 12.0,
			Main:  l5meter.Result{ApertureN: 2.8, ShutterS: 1.0 / 500.0, ISO: 100},
		},
		Zonal: &l5meter.ZonalResult{
			DeltaEV: -0.5,
			Main:    l5meter.Result{ApertureN: 2.8, ShutterS: 1.0 / 350.0, ISO: 100},
		},
		SubjectEV: &l5meter.SubjectResult{
			DeltaEV:      -0.3,
			AreaFraction: 0.6,
			Main:         l5meter.Result{ApertureN: 2.8, ShutterS: 1.0 / 400.0, ISO: 100},
		},
		Elapsed: 8 * time.Millisecond,
	}
}

func TestStartSession(t *testing.T) {
	db := setupTestDB(t)

	sessionID, err := db.StartSession(100, 6, 6, "bench run")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if sessionID == "" {
		t.Fatal("Expected non-empty session ID")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sessions WHERE session_id = ?", sessionID).Scan(&count); err != nil {
		t.Fatalf("Failed to count sessions: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 session, got %d", count)
	}
}

func TestRecordFrame(t *testing.T) {
	db := setupTestDB(t)

	sessionID, err := db.StartSession(100, 6, 6, "")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if err := db.RecordFrame(sessionID, sampleAnalysis(1)); err != nil {
		t.Fatalf("RecordFrame failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM frames WHERE session_id = ?", sessionID).Scan(&count); err != nil {
		t.Fatalf("Failed to count frames: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 frame, got %d", count)
	}
}

func TestRecordFrameNil(t *testing.T) {
	db := setupTestDB(t)
	if err := db.RecordFrame("nope", nil); err == nil {
		t.Error("Expected error for nil analysis, got nil")
	}
}

func TestRecentFrames(t *testing.T) {
	db := setupTestDB(t)

	sessionID, err := db.StartSession(100, 6, 6, "")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	for seq := uint64(1); seq <= 5; seq++ {
		if err := db.RecordFrame(sessionID, sampleAnalysis(seq)); err != nil {
			t.Fatalf("RecordFrame %d failed: %v", seq, err)
		}
	}

	records, err := db.RecentFrames(sessionID, 3)
	if err != nil {
		t.Fatalf("RecentFrames failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	// Newest first
	if records[0].Seq != 5 {
		t.Errorf("First record seq = %d, want 5", records[0].Seq)
	}
	if records[0].SubjectName != "person" {
		t.Errorf("SubjectName = %q, want person", records[0].SubjectName)
	}
	if records[0].SceneEV100 != 12.0 {
		t.Errorf("SceneEV100 = %f, want 12", records[0].SceneEV100)
	}
}

func TestSummarizeSession(t *testing.T) {
	db := setupTestDB(t)

	sessionID, err := db.StartSession(100, 6, 6, "")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	for seq := uint64(1); seq <= 4; seq++ {
		if err := db.RecordFrame(sessionID, sampleAnalysis(seq)); err != nil {
			t.Fatalf("RecordFrame %d failed: %v", seq, err)
		}
	}

	summary, err := db.SummarizeSession(sessionID)
	if err != nil {
		t.Fatalf("SummarizeSession failed: %v", err)
	}
	if summary.FrameCount != 4 {
		t.Errorf("FrameCount = %d, want 4", summary.FrameCount)
	}
	if summary.AvgSceneEV != 12.0 {
		t.Errorf("AvgSceneEV = %f, want 12", summary.AvgSceneEV)
	}
	if summary.TopSubject != "person" {
		t.Errorf("TopSubject = %q, want person", summary.TopSubject)
	}
	if summary.SubjectCount != 4 {
		t.Errorf("SubjectCount = %d, want 4", summary.SubjectCount)
	}
}

func TestSummarizeEmptySession(t *testing.T) {
	db := setupTestDB(t)

	sessionID, err := db.StartSession(100, 6, 6, "")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	summary, err := db.SummarizeSession(sessionID)
	if err != nil {
		t.Fatalf("SummarizeSession failed: %v", err)
	}
	if summary.FrameCount != 0 {
		t.Errorf("FrameCount = %d, want 0", summary.FrameCount)
	}
	if summary.TopSubject != "" {
		t.Errorf("TopSubject = %q, want empty", summary.TopSubject)
	}
}
