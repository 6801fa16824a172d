package orchestrator

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fleetpulse/trackmap/internal/path"
	"github.com/fleetpulse/trackmap/internal/recovery"
)

// Options configures a view.
type Options struct {
	MaxMarkers                int           `json:"maxMarkers" mapstructure:"maxMarkers" validate:"gte=2"`
	SimplifyPath              bool          `json:"simplifyPath" mapstructure:"simplifyPath"`
	ClusterMarkers            bool          `json:"clusterMarkers" mapstructure:"clusterMarkers"`
	Tolerance                 float64       `json:"tolerance" mapstructure:"tolerance" validate:"gte=0"`
	SimplifyMinPoints         int           `json:"simplifyMinPoints" mapstructure:"simplifyMinPoints" validate:"gte=0"`
	UserRequestedInteractive  bool          `json:"userRequestedInteractive" mapstructure:"userRequestedInteractive"`
	AutoUpgradeForSmallTracks bool          `json:"autoUpgradeForSmallTracks" mapstructure:"autoUpgradeForSmallTracks"`
	InteractiveThreshold      int           `json:"interactiveThreshold" mapstructure:"interactiveThreshold" validate:"gte=1"`
	Debounce                  time.Duration `json:"debounce" mapstructure:"debounce" validate:"gte=0"`
	SettleDelay               time.Duration `json:"settleDelay" mapstructure:"settleDelay" validate:"gte=0"`
	TickInterval              time.Duration `json:"tickInterval" mapstructure:"tickInterval" validate:"gt=0"`
	TickStep                  float64       `json:"tickStep" mapstructure:"tickStep" validate:"gt=0"`
	TickCap                   float64       `json:"tickCap" mapstructure:"tickCap" validate:"gt=0,lt=100"`
	MaxRetries                int           `json:"maxRetries" mapstructure:"maxRetries" validate:"gte=1"`
	Viewport                  ViewportSize  `json:"viewport" mapstructure:"viewport"`
}

// ViewportSize is the pixel size the track is fitted into.
type ViewportSize struct {
	Width  int `json:"width" mapstructure:"width" validate:"gte=1"`
	Height int `json:"height" mapstructure:"height" validate:"gte=1"`
}

// DefaultOptions returns the dashboard defaults.
func DefaultOptions() Options {
	return Options{
		MaxMarkers:           path.DefaultMaxMarkers,
		SimplifyPath:         true,
		ClusterMarkers:       true,
		Tolerance:            path.DefaultTolerance,
		SimplifyMinPoints:    path.DefaultMinPoints,
		InteractiveThreshold: DefaultInteractiveThreshold,
		Debounce:             300 * time.Millisecond,
		SettleDelay:          500 * time.Millisecond,
		TickInterval:         100 * time.Millisecond,
		TickStep:             10,
		TickCap:              90,
		MaxRetries:           recovery.DefaultMaxRetries,
		Viewport:             ViewportSize{Width: 1024, Height: 768},
	}
}

var validate = validator.New()

// Validate checks the option bounds.
func (o Options) Validate() error {
	return validate.Struct(o)
}

// PathOptions returns the path pipeline settings.
func (o Options) PathOptions() path.Options {
	return path.Options{
		SimplifyPath:   o.SimplifyPath,
		ClusterMarkers: o.ClusterMarkers,
		Tolerance:      o.Tolerance,
		MinPoints:      o.SimplifyMinPoints,
		MaxMarkers:     o.MaxMarkers,
	}
}
