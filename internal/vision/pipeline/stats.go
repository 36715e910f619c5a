package pipeline

import (
	"sync"
	"time"
)

// AnalyzerStats tracks frame accounting with thread-safe operations.
type AnalyzerStats struct {
	mu            sync.Mutex
	framesIn      int64
	framesDropped int64
	framesDone    int64
	errorCount    int64
	analysisNanos int64
	started       time.Time
}

// NewAnalyzerStats creates a new AnalyzerStats instance.
func NewAnalyzerStats() *AnalyzerStats {
	return &AnalyzerStats{started: time.Now()}
}

// AddFrame records a frame submitted for analysis.
func (s *AnalyzerStats) AddFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesIn++
}

// AddDropped records a frame rejected because the semantic path was busy.
func (s *AnalyzerStats) AddDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesDropped++
}

// AddAnalyzed records a completed semantic analysis and its duration.
func (s *AnalyzerStats) AddAnalyzed(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesDone++
	s.analysisNanos += int64(elapsed)
}

// AddError records a failed analysis pass.
func (s *AnalyzerStats) AddError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
}

// StatsSnapshot is a point-in-time copy of the counters, suitable for
// JSON status endpoints.
type StatsSnapshot struct {
	FramesIn      int64   `json:"frames_in"`
	FramesDropped int64   `json:"frames_dropped"`
	FramesDone    int64   `json:"frames_done"`
	Errors        int64   `json:"errors"`
	AvgAnalysisMs float64 `json:"avg_analysis_ms"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Snapshot returns the current counters without resetting them.
func (s *AnalyzerStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		FramesIn:      s.framesIn,
		FramesDropped: s.framesDropped,
		FramesDone:    s.framesDone,
		Errors:        s.errorCount,
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	if s.framesDone > 0 {
		snap.AvgAnalysisMs = float64(s.analysisNanos) / float64(s.framesDone) / 1e6
	}
	return snap
}
