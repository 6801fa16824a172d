// pkg/core/marker.go
package core

// MarkerLabel marks the endpoints of a clustered track.
type MarkerLabel string

const (
	LabelNone  MarkerLabel = ""
	LabelStart MarkerLabel = "Start"
	LabelEnd   MarkerLabel = "End"
)

// ClusterMarker is a displayed point standing in for itself plus zero or more
// absorbed neighbours. AbsorbedCount includes the representative.
type ClusterMarker struct {
	Representative Point       `json:"representative"`
	Label          MarkerLabel `json:"label,omitempty"`
	AbsorbedCount  int         `json:"absorbedCount"`
}

// Equal compares two markers by value.
func (m ClusterMarker) Equal(o ClusterMarker) bool {
	return m.Label == o.Label && m.AbsorbedCount == o.AbsorbedCount && m.Representative.Equal(o.Representative)
}

// MarkersEqual reports whether two marker sequences are identical.
func MarkersEqual(a, b []ClusterMarker) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// TotalAbsorbed sums AbsorbedCount across markers.
func TotalAbsorbed(markers []ClusterMarker) int {
	total := 0
	for _, m := range markers {
		total += m.AbsorbedCount
	}
	return total
}

// Points returns the representative point of every marker.
func Points(markers []ClusterMarker) Track {
	out := make(Track, len(markers))
	for i, m := range markers {
		out[i] = m.Representative
	}
	return out
}
