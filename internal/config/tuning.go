package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kestrel-optics/exposure.report/internal/vision"
	"github.com/kestrel-optics/exposure.report/internal/vision/l5meter"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the analysis
// pipeline. Fields are pointers so a partial JSON file only overrides
// what it names; the Get* methods provide the fallback defaults.
type TuningConfig struct {
	// Metering params
	TargetISO      *float64 `json:"target_iso,omitempty"`
	SampleStride   *int     `json:"sample_stride,omitempty"`
	ZoneRows       *int     `json:"zone_rows,omitempty"`
	ZoneCols       *int     `json:"zone_cols,omitempty"`
	TargetShutterS *float64 `json:"target_shutter_s,omitempty"`

	// Crop rectangle (normalized). Defaults to the full frame.
	CropX *float64 `json:"crop_x,omitempty"`
	CropY *float64 `json:"crop_y,omitempty"`
	CropW *float64 `json:"crop_w,omitempty"`
	CropH *float64 `json:"crop_h,omitempty"`

	// Pipeline stage toggles
	Augmentation *bool `json:"augmentation,omitempty"`
	Denoise      *bool `json:"denoise,omitempty"`

	// Monitor / persistence
	MonitorAddr *string `json:"monitor_addr,omitempty"`
	DBPath      *string `json:"db_path,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.TargetISO != nil && *c.TargetISO <= 0 {
		return fmt.Errorf("target_iso must be positive, got %f", *c.TargetISO)
	}
	if c.SampleStride != nil && *c.SampleStride < 1 {
		return fmt.Errorf("sample_stride must be >= 1, got %d", *c.SampleStride)
	}
	if c.ZoneRows != nil && *c.ZoneRows < 1 {
		return fmt.Errorf("zone_rows must be >= 1, got %d", *c.ZoneRows)
	}
	if c.ZoneCols != nil && *c.ZoneCols < 1 {
		return fmt.Errorf("zone_cols must be >= 1, got %d", *c.ZoneCols)
	}
	if c.TargetShutterS != nil && *c.TargetShutterS <= 0 {
		return fmt.Errorf("target_shutter_s must be positive, got %f", *c.TargetShutterS)
	}
	for name, v := range map[string]*float64{
		"crop_x": c.CropX, "crop_y": c.CropY, "crop_w": c.CropW, "crop_h": c.CropH,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be in [0,1], got %f", name, *v)
		}
	}
	return nil
}

// GetTargetISO returns the target_iso value or the default.
func (c *TuningConfig) GetTargetISO() float64 {
	if c.TargetISO == nil {
		return 100
	}
	return *c.TargetISO
}

// GetSampleStride returns the sample_stride value or the default.
func (c *TuningConfig) GetSampleStride() int {
	if c.SampleStride == nil {
		return 4
	}
	return *c.SampleStride
}

// GetZoneRows returns the zone_rows value or the default.
func (c *TuningConfig) GetZoneRows() int {
	if c.ZoneRows == nil {
		return 6
	}
	return *c.ZoneRows
}

// GetZoneCols returns the zone_cols value or the default.
func (c *TuningConfig) GetZoneCols() int {
	if c.ZoneCols == nil {
		return 6
	}
	return *c.ZoneCols
}

// GetTargetShutterS returns the target_shutter_s value or the default.
func (c *TuningConfig) GetTargetShutterS() float64 {
	if c.TargetShutterS == nil {
		return 1.0 / 60.0
	}
	return *c.TargetShutterS
}

// GetCrop returns the configured crop rectangle or the full frame.
func (c *TuningConfig) GetCrop() vision.CropRect {
	crop := vision.FullFrame()
	if c.CropX != nil {
		crop.X = *c.CropX
	}
	if c.CropY != nil {
		crop.Y = *c.CropY
	}
	if c.CropW != nil {
		crop.W = *c.CropW
	}
	if c.CropH != nil {
		crop.H = *c.CropH
	}
	return crop
}

// GetAugmentation returns the augmentation toggle or the default.
func (c *TuningConfig) GetAugmentation() bool {
	if c.Augmentation == nil {
		return true
	}
	return *c.Augmentation
}

// GetDenoise returns the denoise toggle or the default.
func (c *TuningConfig) GetDenoise() bool {
	if c.Denoise == nil {
		return true
	}
	return *c.Denoise
}

// GetMonitorAddr returns the monitor_addr value or the default.
func (c *TuningConfig) GetMonitorAddr() string {
	if c.MonitorAddr == nil || *c.MonitorAddr == "" {
		return ":8089"
	}
	return *c.MonitorAddr
}

// GetDBPath returns the db_path value or the default.
func (c *TuningConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "exposure.db"
	}
	return *c.DBPath
}

// MeterParams assembles the metering engine parameters from the config.
func (c *TuningConfig) MeterParams() l5meter.Params {
	return l5meter.Params{
		TargetISO:      c.GetTargetISO(),
		SampleStride:   c.GetSampleStride(),
		ZoneRows:       c.GetZoneRows(),
		ZoneCols:       c.GetZoneCols(),
		TargetShutterS: c.GetTargetShutterS(),
	}
}
