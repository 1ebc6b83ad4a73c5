package camera

import (
	"time"

	"github.com/veganlens/veganlens-core/internal/infrastructure/config"
)

// Mode is one of the declared camera operating configurations.
type Mode string

// The four camera modes. No transition between them is structurally
// forbidden; ownership arbitration can refuse any of them at runtime.
const (
	ModeInactive         Mode = "inactive"
	ModeScanner          Mode = "scanner"
	ModeProductPhoto     Mode = "product-photo"
	ModeIngredientsPhoto Mode = "ingredients-photo"
)

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeInactive, ModeScanner, ModeProductPhoto, ModeIngredientsPhoto:
		return true
	}
	return false
}

// IsPhoto reports whether m is one of the two photo-capture modes.
func (m Mode) IsPhoto() bool {
	return m == ModeProductPhoto || m == ModeIngredientsPhoto
}

// Permission is the tri-state camera permission status.
type Permission string

const (
	// PermissionUnknown means the permission prompt has not resolved yet.
	PermissionUnknown Permission = "unknown"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Operation names a capability the caller wants to exercise.
type Operation string

const (
	OperationBarcode Operation = "barcode"
	OperationPhoto   Operation = "photo"
)

// Config is the declarative hardware intent for one camera mode.
//
// Values are copied on every read; no caller holds a shared reference.
type Config struct {
	Facing             string   `json:"facing"`
	EnableBarcode      bool     `json:"enable_barcode"`
	BarcodeTypes       []string `json:"barcode_types,omitempty"`
	EnablePhotoCapture bool     `json:"enable_photo_capture"`
	CaptureQuality     float64  `json:"capture_quality"`
	Autofocus          string   `json:"autofocus"`
	FocusDepth         float64  `json:"focus_depth"`
	Zoom               float64  `json:"zoom"`
	TouchFocus         bool     `json:"touch_focus"`
}

// clone returns a deep copy of the config.
func (c Config) clone() Config {
	out := c
	if c.BarcodeTypes != nil {
		out.BarcodeTypes = make([]string, len(c.BarcodeTypes))
		copy(out.BarcodeTypes, c.BarcodeTypes)
	}
	return out
}

// configFromDefaults converts YAML mode defaults into a camera Config.
func configFromDefaults(d config.ModeDefaults) Config {
	return Config{
		Facing:             d.Facing,
		EnableBarcode:      d.EnableBarcode,
		BarcodeTypes:       append([]string(nil), d.BarcodeTypes...),
		EnablePhotoCapture: d.EnablePhotoCapture,
		CaptureQuality:     d.CaptureQuality,
		Autofocus:          d.Autofocus,
		FocusDepth:         d.FocusDepth,
		Zoom:               d.Zoom,
		TouchFocus:         d.TouchFocus,
	}
}

// ConfigPatch is a partial config. Nil fields leave the target unchanged.
//
// Used both for per-call overrides on SwitchToMode and for runtime updates
// through UpdateModeConfig.
type ConfigPatch struct {
	Facing             *string   `json:"facing,omitempty"`
	EnableBarcode      *bool     `json:"enable_barcode,omitempty"`
	BarcodeTypes       []string  `json:"barcode_types,omitempty"`
	EnablePhotoCapture *bool     `json:"enable_photo_capture,omitempty"`
	CaptureQuality     *float64  `json:"capture_quality,omitempty"`
	Autofocus          *string   `json:"autofocus,omitempty"`
	FocusDepth         *float64  `json:"focus_depth,omitempty"`
	Zoom               *float64  `json:"zoom,omitempty"`
	TouchFocus         *bool     `json:"touch_focus,omitempty"`
}

// apply merges the patch into cfg.
func (p *ConfigPatch) apply(cfg *Config) {
	if p == nil {
		return
	}
	if p.Facing != nil {
		cfg.Facing = *p.Facing
	}
	if p.EnableBarcode != nil {
		cfg.EnableBarcode = *p.EnableBarcode
	}
	if p.BarcodeTypes != nil {
		cfg.BarcodeTypes = append([]string(nil), p.BarcodeTypes...)
	}
	if p.EnablePhotoCapture != nil {
		cfg.EnablePhotoCapture = *p.EnablePhotoCapture
	}
	if p.CaptureQuality != nil {
		cfg.CaptureQuality = *p.CaptureQuality
	}
	if p.Autofocus != nil {
		cfg.Autofocus = *p.Autofocus
	}
	if p.FocusDepth != nil {
		cfg.FocusDepth = *p.FocusDepth
	}
	if p.Zoom != nil {
		cfg.Zoom = *p.Zoom
	}
	if p.TouchFocus != nil {
		cfg.TouchFocus = *p.TouchFocus
	}
}

// State is the single mutable camera snapshot. Accessors return copies;
// no caller may mutate it directly.
type State struct {
	Mode        Mode       `json:"mode"`
	IsActive    bool       `json:"is_active"`
	IsCapturing bool       `json:"is_capturing"`
	Permission  Permission `json:"permission"`
	Error       string     `json:"error,omitempty"`
	Config      Config     `json:"config"`
}

// clone returns a deep copy of the state.
func (s State) clone() State {
	out := s
	out.Config = s.Config.clone()
	return out
}

// Lease is the exclusive, time-stamped claim on the camera by a logical
// owner identity. At most one lease exists at any instant.
type Lease struct {
	Owner     string    `json:"owner"`
	Mode      Mode      `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

// TransitionSample records one completed mode transition for metrics.
type TransitionSample struct {
	From      Mode          `json:"from"`
	To        Mode          `json:"to"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Reset reasons carried on camera reset events and telemetry.
const (
	ResetReasonPhotoWorkflowComplete = "photo_workflow_complete"
	ResetReasonDegradedScanning      = "degraded_scanning"
)

// CaptureOptions tunes a single photo capture.
type CaptureOptions struct {
	// Quality overrides the mode's capture quality when positive.
	Quality float64 `json:"quality,omitempty"`
}
