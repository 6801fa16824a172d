// pkg/core/state.go
package core

// MapImplementation is the map variant mounted by a view.
type MapImplementation int

const (
	Lightweight MapImplementation = iota
	Interactive
	Fallback
)

func (m MapImplementation) String() string {
	switch m {
	case Lightweight:
		return "lightweight"
	case Interactive:
		return "interactive"
	case Fallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// LoadingState is the view's position in the loading/upgrade state machine.
type LoadingState int

const (
	Idle LoadingState = iota
	LoadingData
	Upgrading
	Ready
	Error
)

func (s LoadingState) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingData:
		return "loading_data"
	case Upgrading:
		return "upgrading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// LoadProgress is reported after every fetched chunk.
type LoadProgress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// TileProvider is one entry in a tile fallback chain.
type TileProvider struct {
	URLTemplate string `json:"urlTemplate" mapstructure:"urlTemplate" validate:"required"`
	Attribution string `json:"attribution" mapstructure:"attribution"`
	MaxZoom     int    `json:"maxZoom" mapstructure:"maxZoom" validate:"gte=0,lte=24"`
}
