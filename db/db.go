package db

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/kestrel-optics/exposure.report/internal/monitoring"
	"github.com/kestrel-optics/exposure.report/internal/vision/pipeline"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			started           TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			target_iso        DOUBLE,
			zone_rows         BIGINT,
			zone_cols         BIGINT,
			notes             TEXT
		);
		CREATE TABLE IF NOT EXISTS frames (
			frame_id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id        TEXT,
			seq               BIGINT,
			taken             TIMESTAMP,
			subject_class     BIGINT,
			subject_name      TEXT,
			subject_score     DOUBLE,
			coverage_json     TEXT,
			scene_ev100       DOUBLE,
			scene_aperture    DOUBLE,
			scene_shutter     DOUBLE,
			scene_iso         DOUBLE,
			zonal_delta_ev    DOUBLE,
			zonal_aperture    DOUBLE,
			zonal_shutter     DOUBLE,
			zonal_iso         DOUBLE,
			subject_delta_ev  DOUBLE,
			subject_area      DOUBLE,
			subject_aperture  DOUBLE,
			subject_shutter   DOUBLE,
			subject_iso       DOUBLE,
			analysis_ms       DOUBLE,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_frames_session ON frames(session_id, seq);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// StartSession creates a new analysis session row and returns its ID.
func (db *DB) StartSession(targetISO float64, zoneRows, zoneCols int, notes string) (string, error) {
	sessionID := uuid.NewString()
	_, err := db.Exec(
		"INSERT INTO sessions (session_id, target_iso, zone_rows, zone_cols, notes) VALUES (?, ?, ?, ?, ?)",
		sessionID, targetISO, zoneRows, zoneCols, notes,
	)
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return sessionID, nil
}

// RecordFrame persists one completed frame analysis under a session.
func (db *DB) RecordFrame(sessionID string, res *pipeline.FrameAnalysis) error {
	if res == nil {
		return fmt.Errorf("nil analysis result")
	}

	coverageJSON, err := json.Marshal(res.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}

	var sceneEV, sceneN, sceneT, sceneISO float64
	if res.Scene != nil {
		sceneEV = res.Scene.EV100
		sceneN = res.Scene.Main.ApertureN
		sceneT = res.Scene.Main.ShutterS
		sceneISO = res.Scene.Main.ISO
	}
	var zonalDelta, zonalN, zonalT, zonalISO float64
	if res.Zonal != nil {
		zonalDelta = res.Zonal.DeltaEV
		zonalN = res.Zonal.Main.ApertureN
		zonalT = res.Zonal.Main.ShutterS
		zonalISO = res.Zonal.Main.ISO
	}
	var subjDelta, subjArea, subjN, subjT, subjISO float64
	if res.SubjectEV != nil {
		subjDelta = res.SubjectEV.DeltaEV
		subjArea = res.SubjectEV.AreaFraction
		subjN = res.SubjectEV.Main.ApertureN
		subjT = res.SubjectEV.Main.ShutterS
		subjISO = res.SubjectEV.Main.ISO
	}

	_, err = db.Exec(`INSERT INTO frames (
			session_id, seq, taken,
			subject_class, subject_name, subject_score, coverage_json,
			scene_ev100, scene_aperture, scene_shutter, scene_iso,
			zonal_delta_ev, zonal_aperture, zonal_shutter, zonal_iso,
			subject_delta_ev, subject_area, subject_aperture, subject_shutter, subject_iso,
			analysis_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, res.Seq, res.Time,
		res.Subject.Class, res.Subject.Name, res.Subject.Score, string(coverageJSON),
		sceneEV, sceneN, sceneT, sceneISO,
		zonalDelta, zonalN, zonalT, zonalISO,
		subjDelta, subjArea, subjN, subjT, subjISO,
		float64(res.Elapsed)/1e6,
	)
	if err != nil {
		return fmt.Errorf("record frame: %w", err)
	}
	monitoring.Framef("[DB] frame %d: subject=%s sceneEV=%.2f", res.Seq, res.Subject.Name, sceneEV)
	return nil
}

// FrameRecord is a persisted frame analysis row, as returned by
// RecentFrames.
type FrameRecord struct {
	Seq            int64     `json:"seq"`
	Taken          time.Time `json:"taken"`
	SubjectClass   int       `json:"subject_class"`
	SubjectName    string    `json:"subject_name"`
	SubjectScore   float64   `json:"subject_score"`
	CoverageJSON   string    `json:"coverage_json"`
	SceneEV100     float64   `json:"scene_ev100"`
	ZonalDeltaEV   float64   `json:"zonal_delta_ev"`
	SubjectDeltaEV float64   `json:"subject_delta_ev"`
	SubjectArea    float64   `json:"subject_area"`
	AnalysisMs     float64   `json:"analysis_ms"`
}

func (r *FrameRecord) String() string {
	return fmt.Sprintf("Seq: %d, Subject: %s, EV100: %f, DeltaEV: %f",
		r.Seq, r.SubjectName, r.SceneEV100, r.ZonalDeltaEV)
}

// RecentFrames returns the latest frame records for a session, newest
// first.
func (db *DB) RecentFrames(sessionID string, limit int) ([]FrameRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.Query(`SELECT
			seq, taken, subject_class, subject_name, subject_score, coverage_json,
			scene_ev100, zonal_delta_ev, subject_delta_ev, subject_area, analysis_ms
		FROM frames WHERE session_id = ? ORDER BY seq DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FrameRecord
	for rows.Next() {
		var rec FrameRecord
		if err := rows.Scan(
			&rec.Seq, &rec.Taken, &rec.SubjectClass, &rec.SubjectName, &rec.SubjectScore,
			&rec.CoverageJSON, &rec.SceneEV100, &rec.ZonalDeltaEV, &rec.SubjectDeltaEV,
			&rec.SubjectArea, &rec.AnalysisMs,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// SessionSummary aggregates a session's frame rows.
type SessionSummary struct {
	SessionID    string  `json:"session_id"`
	FrameCount   int64   `json:"frame_count"`
	AvgSceneEV   float64 `json:"avg_scene_ev100"`
	AvgZonalDEV  float64 `json:"avg_zonal_delta_ev"`
	TopSubject   string  `json:"top_subject"`
	SubjectCount int64   `json:"top_subject_frames"`
}

// SummarizeSession computes per-session aggregates for reporting.
func (db *DB) SummarizeSession(sessionID string) (*SessionSummary, error) {
	summary := &SessionSummary{SessionID: sessionID}

	err := db.QueryRow(`SELECT COUNT(*), COALESCE(AVG(scene_ev100), 0), COALESCE(AVG(zonal_delta_ev), 0)
		FROM frames WHERE session_id = ?`, sessionID).
		Scan(&summary.FrameCount, &summary.AvgSceneEV, &summary.AvgZonalDEV)
	if err != nil {
		return nil, err
	}

	err = db.QueryRow(`SELECT subject_name, COUNT(*) AS n FROM frames
		WHERE session_id = ? AND subject_name != ''
		GROUP BY subject_name ORDER BY n DESC LIMIT 1`, sessionID).
		Scan(&summary.TopSubject, &summary.SubjectCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return summary, nil
}

// AttachAdminRoutes mounts the tailSQL browser and a backup endpoint
// under /debug on the given mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://exposure.db", db.DB, &tailsql.DBOptions{
		Label: "Metering sessions",
	})

	debug.Handle("tailsql/", "Browse metering sessions with live SQL", tsql.NewMux())

	debug.Handle("backup", "Snapshot the metering database and download it", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("exposure-backup-%d.db", time.Now().Unix())
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// The snapshot is transient: stream it out, then remove it.
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("[DB] Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
