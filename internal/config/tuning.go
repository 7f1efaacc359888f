package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for tracking parameters. The
// schema matches the /api/params endpoint so the same JSON serves both
// startup configuration and the runtime parameter snapshot. All fields are
// pointers; omitted fields fall back to documented defaults via the Get*
// accessors, so partial configs are safe.
type TuningConfig struct {
	// Frame geometry
	FrameWidth  *float64 `json:"frame_width,omitempty"`
	FrameHeight *float64 `json:"frame_height,omitempty"`
	NominalFPS  *float64 `json:"nominal_fps,omitempty"`

	// Detection filter: per-label minimum confidence. Empty keeps all.
	MinConfidence map[string]float64 `json:"min_confidence,omitempty"`

	// Motion model
	UseKalman        *bool    `json:"use_kalman,omitempty"`
	ProcessNoisePos  *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel  *float64 `json:"process_noise_vel,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`
	InitialVariance  *float64 `json:"initial_variance,omitempty"`
	MaxVariance      *float64 `json:"max_variance,omitempty"`

	// Association
	CostMetric     *string  `json:"cost_metric,omitempty"` // "euclidean" or "iou"
	GateDistancePx *float64 `json:"gate_distance_px,omitempty"`

	// Lifecycle
	HitsToConfirm     *int `json:"hits_to_confirm,omitempty"`
	LostAfterMisses   *int `json:"lost_after_misses,omitempty"`
	RetireAfterMisses *int `json:"retire_after_misses,omitempty"`
	MaxHistory        *int `json:"max_history,omitempty"`

	// Behavior
	SlowMinRel        *float64 `json:"slow_min_rel,omitempty"`
	FastMinRel        *float64 `json:"fast_min_rel,omitempty"`
	SpeedSmoothing    *float64 `json:"speed_smoothing,omitempty"`
	SizeSmoothing     *float64 `json:"size_smoothing,omitempty"`
	BorderMarginRatio *float64 `json:"border_margin_ratio,omitempty"`

	// Heatmap
	HeatmapBinPx  *float64 `json:"heatmap_bin_px,omitempty"`
	HeatmapDecay  *float64 `json:"heatmap_decay,omitempty"`
	HeatmapKernel *bool    `json:"heatmap_kernel,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
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

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for test
// setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/storage/sqlite/
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every set field for out-of-range values. Unset fields
// are fine; their defaults are always valid.
func (c *TuningConfig) Validate() error {
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %f", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %f", *c.FrameHeight)
	}
	if c.NominalFPS != nil && *c.NominalFPS <= 0 {
		return fmt.Errorf("nominal_fps must be positive, got %f", *c.NominalFPS)
	}
	for label, conf := range c.MinConfidence {
		if conf < 0 || conf > 1 {
			return fmt.Errorf("min_confidence[%s] must be between 0 and 1, got %f", label, conf)
		}
	}
	if c.ProcessNoisePos != nil && *c.ProcessNoisePos <= 0 {
		return fmt.Errorf("process_noise_pos must be positive, got %f", *c.ProcessNoisePos)
	}
	if c.ProcessNoiseVel != nil && *c.ProcessNoiseVel <= 0 {
		return fmt.Errorf("process_noise_vel must be positive, got %f", *c.ProcessNoiseVel)
	}
	if c.MeasurementNoise != nil && *c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement_noise must be positive, got %f", *c.MeasurementNoise)
	}
	if c.InitialVariance != nil && *c.InitialVariance <= 0 {
		return fmt.Errorf("initial_variance must be positive, got %f", *c.InitialVariance)
	}
	if c.MaxVariance != nil && *c.MaxVariance <= 0 {
		return fmt.Errorf("max_variance must be positive, got %f", *c.MaxVariance)
	}
	if c.CostMetric != nil {
		if *c.CostMetric != "euclidean" && *c.CostMetric != "iou" {
			return fmt.Errorf("cost_metric must be \"euclidean\" or \"iou\", got %q", *c.CostMetric)
		}
	}
	if c.GateDistancePx != nil && *c.GateDistancePx <= 0 {
		return fmt.Errorf("gate_distance_px must be positive, got %f", *c.GateDistancePx)
	}
	if c.HitsToConfirm != nil && *c.HitsToConfirm < 1 {
		return fmt.Errorf("hits_to_confirm must be at least 1, got %d", *c.HitsToConfirm)
	}
	if c.LostAfterMisses != nil && *c.LostAfterMisses < 1 {
		return fmt.Errorf("lost_after_misses must be at least 1, got %d", *c.LostAfterMisses)
	}
	if c.RetireAfterMisses != nil && *c.RetireAfterMisses < 1 {
		return fmt.Errorf("retire_after_misses must be at least 1, got %d", *c.RetireAfterMisses)
	}
	if c.MaxHistory != nil && *c.MaxHistory < 1 {
		return fmt.Errorf("max_history must be at least 1, got %d", *c.MaxHistory)
	}
	if c.SlowMinRel != nil && *c.SlowMinRel < 0 {
		return fmt.Errorf("slow_min_rel must be non-negative, got %f", *c.SlowMinRel)
	}
	if c.FastMinRel != nil && *c.FastMinRel < 0 {
		return fmt.Errorf("fast_min_rel must be non-negative, got %f", *c.FastMinRel)
	}
	if c.SpeedSmoothing != nil && (*c.SpeedSmoothing < 0 || *c.SpeedSmoothing >= 1) {
		return fmt.Errorf("speed_smoothing must be in [0, 1), got %f", *c.SpeedSmoothing)
	}
	if c.SizeSmoothing != nil && (*c.SizeSmoothing < 0 || *c.SizeSmoothing >= 1) {
		return fmt.Errorf("size_smoothing must be in [0, 1), got %f", *c.SizeSmoothing)
	}
	if c.BorderMarginRatio != nil && (*c.BorderMarginRatio < 0 || *c.BorderMarginRatio >= 0.5) {
		return fmt.Errorf("border_margin_ratio must be in [0, 0.5), got %f", *c.BorderMarginRatio)
	}
	if c.HeatmapBinPx != nil && *c.HeatmapBinPx <= 0 {
		return fmt.Errorf("heatmap_bin_px must be positive, got %f", *c.HeatmapBinPx)
	}
	if c.HeatmapDecay != nil && (*c.HeatmapDecay < 0 || *c.HeatmapDecay > 1) {
		return fmt.Errorf("heatmap_decay must be in [0, 1], got %f", *c.HeatmapDecay)
	}
	return nil
}

// GetFrameWidth returns the frame_width value or the default.
func (c *TuningConfig) GetFrameWidth() float64 {
	if c.FrameWidth == nil {
		return 1280 // default
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *TuningConfig) GetFrameHeight() float64 {
	if c.FrameHeight == nil {
		return 720 // default
	}
	return *c.FrameHeight
}

// GetNominalFPS returns the nominal_fps value or the default.
func (c *TuningConfig) GetNominalFPS() float64 {
	if c.NominalFPS == nil {
		return 30 // default
	}
	return *c.NominalFPS
}

// GetUseKalman returns the use_kalman value or the default.
func (c *TuningConfig) GetUseKalman() bool {
	if c.UseKalman == nil {
		return true // default
	}
	return *c.UseKalman
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 2.0 // default
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 5.0 // default
	}
	return *c.ProcessNoiseVel
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 5.0 // default
	}
	return *c.MeasurementNoise
}

// GetInitialVariance returns the initial_variance value or the default.
func (c *TuningConfig) GetInitialVariance() float64 {
	if c.InitialVariance == nil {
		return 10.0 // default
	}
	return *c.InitialVariance
}

// GetMaxVariance returns the max_variance value or the default.
func (c *TuningConfig) GetMaxVariance() float64 {
	if c.MaxVariance == nil {
		return 500.0 // default
	}
	return *c.MaxVariance
}

// GetCostMetric returns the cost_metric value or the default.
func (c *TuningConfig) GetCostMetric() string {
	if c.CostMetric == nil {
		return "euclidean" // default
	}
	return *c.CostMetric
}

// GetGateDistancePx returns the gate_distance_px value or the default.
func (c *TuningConfig) GetGateDistancePx() float64 {
	if c.GateDistancePx == nil {
		return 120.0 // default
	}
	return *c.GateDistancePx
}

// GetHitsToConfirm returns the hits_to_confirm value or the default.
func (c *TuningConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 3 // default
	}
	return *c.HitsToConfirm
}

// GetLostAfterMisses returns the lost_after_misses value or the default.
func (c *TuningConfig) GetLostAfterMisses() int {
	if c.LostAfterMisses == nil {
		return 5 // default
	}
	return *c.LostAfterMisses
}

// GetRetireAfterMisses returns the retire_after_misses value or the default.
func (c *TuningConfig) GetRetireAfterMisses() int {
	if c.RetireAfterMisses == nil {
		return 15 // default
	}
	return *c.RetireAfterMisses
}

// GetMaxHistory returns the max_history value or the default.
func (c *TuningConfig) GetMaxHistory() int {
	if c.MaxHistory == nil {
		return 300 // default
	}
	return *c.MaxHistory
}

// GetSlowMinRel returns the slow_min_rel value or the default.
func (c *TuningConfig) GetSlowMinRel() float64 {
	if c.SlowMinRel == nil {
		return 0.01 // default
	}
	return *c.SlowMinRel
}

// GetFastMinRel returns the fast_min_rel value or the default.
func (c *TuningConfig) GetFastMinRel() float64 {
	if c.FastMinRel == nil {
		return 0.05 // default
	}
	return *c.FastMinRel
}

// GetSpeedSmoothing returns the speed_smoothing value or the default.
func (c *TuningConfig) GetSpeedSmoothing() float64 {
	if c.SpeedSmoothing == nil {
		return 0.7 // default
	}
	return *c.SpeedSmoothing
}

// GetSizeSmoothing returns the size_smoothing value or the default.
func (c *TuningConfig) GetSizeSmoothing() float64 {
	if c.SizeSmoothing == nil {
		return 0.7 // default
	}
	return *c.SizeSmoothing
}

// GetBorderMarginRatio returns the border_margin_ratio value or the default.
func (c *TuningConfig) GetBorderMarginRatio() float64 {
	if c.BorderMarginRatio == nil {
		return 0.1 // default
	}
	return *c.BorderMarginRatio
}

// GetHeatmapBinPx returns the heatmap_bin_px value or the default.
func (c *TuningConfig) GetHeatmapBinPx() float64 {
	if c.HeatmapBinPx == nil {
		return 8.0 // default
	}
	return *c.HeatmapBinPx
}

// GetHeatmapDecay returns the heatmap_decay value or the default.
// Zero disables decay.
func (c *TuningConfig) GetHeatmapDecay() float64 {
	if c.HeatmapDecay == nil {
		return 0 // default
	}
	return *c.HeatmapDecay
}

// GetHeatmapKernel returns the heatmap_kernel value or the default.
func (c *TuningConfig) GetHeatmapKernel() bool {
	if c.HeatmapKernel == nil {
		return true // default
	}
	return *c.HeatmapKernel
}
