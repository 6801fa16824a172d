package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fleetpulse/trackmap/internal/cache"
	"github.com/fleetpulse/trackmap/pkg/core"
)

// Icon is a marker glyph.
type Icon struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Size  int    `json:"size"`
	Text  string `json:"text,omitempty"`
}

// Static icons shared by every render.
var (
	StartIcon    = Icon{Name: "start", Color: "#16a34a", Size: 28}
	EndIcon      = Icon{Name: "end", Color: "#dc2626", Size: 28}
	WaypointIcon = Icon{Name: "waypoint", Color: "#2563eb", Size: 12}
)

var clusterIcons = cache.NewMemo[int, Icon]()

// IconFor returns the icon of a marker. Cluster icons are built once per
// absorbed count and reused.
func IconFor(m core.ClusterMarker) Icon {
	switch m.Label {
	case core.LabelStart:
		return StartIcon
	case core.LabelEnd:
		return EndIcon
	}
	if m.AbsorbedCount <= 1 {
		return WaypointIcon
	}
	return clusterIcons.GetOrCreate(m.AbsorbedCount, func() Icon {
		return Icon{
			Name:  "cluster",
			Color: "#7c3aed",
			Size:  clusterSize(m.AbsorbedCount),
			Text:  strconv.Itoa(m.AbsorbedCount),
		}
	})
}

func clusterSize(n int) int {
	switch {
	case n < 10:
		return 18
	case n < 100:
		return 22
	default:
		return 26
	}
}

// Popup returns the popup text of a marker.
func Popup(m core.ClusterMarker) string {
	p := m.Representative
	var b strings.Builder

	if m.Label != core.LabelNone {
		b.WriteString(string(m.Label))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%.6f, %.6f", p.Lat, p.Lng)
	if !p.Time.IsZero() {
		fmt.Fprintf(&b, "\n%s", p.Time.UTC().Format(time.RFC3339))
	}
	if p.Speed != nil {
		fmt.Fprintf(&b, "\nSpeed: %.1f km/h", *p.Speed)
	}
	if p.Accuracy != nil {
		fmt.Fprintf(&b, "\nAccuracy: %.0f m", *p.Accuracy)
	}
	if m.AbsorbedCount > 1 {
		fmt.Fprintf(&b, "\n%d points", m.AbsorbedCount)
	}
	return b.String()
}
