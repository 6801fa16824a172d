package path

import "github.com/fleetpulse/trackmap/pkg/core"

// DefaultMaxMarkers bounds the marker count handed to the renderer.
const DefaultMaxMarkers = 20

// Cluster reduces track to at most maxMarkers markers. Short tracks map one
// point to one marker. Longer tracks keep the endpoints as individual Start
// and End markers and stride-sample the interior; each kept interior point
// absorbs the skipped points up to the next kept one, so the absorbed
// counts always sum to len(track). maxMarkers below 2 is treated as 2.
func Cluster(track core.Track, maxMarkers int) []core.ClusterMarker {
	n := len(track)
	if n == 0 {
		return []core.ClusterMarker{}
	}
	if maxMarkers < 2 {
		maxMarkers = 2
	}

	if n <= maxMarkers {
		markers := make([]core.ClusterMarker, n)
		for i, p := range track {
			markers[i] = core.ClusterMarker{Representative: p, AbsorbedCount: 1}
		}
		labelEndpoints(markers)
		return markers
	}

	interior := n - 2
	budget := maxMarkers - 2
	markers := make([]core.ClusterMarker, 0, maxMarkers)
	start := core.ClusterMarker{Representative: track[0], Label: core.LabelStart, AbsorbedCount: 1}

	if budget == 0 {
		// No room for interior markers: Start stands in for the whole interior.
		start.AbsorbedCount += interior
		markers = append(markers, start)
	} else {
		markers = append(markers, start)
		stride := (interior + budget - 1) / budget
		for i := 1; i < n-1; i += stride {
			next := i + stride
			if next > n-1 {
				next = n - 1
			}
			markers = append(markers, core.ClusterMarker{
				Representative: track[i],
				AbsorbedCount:  next - i,
			})
		}
	}

	markers = append(markers, core.ClusterMarker{
		Representative: track[n-1],
		Label:          core.LabelEnd,
		AbsorbedCount:  1,
	})
	return markers
}

// Individual maps every point to its own marker with labelled endpoints.
// Used when clustering is disabled.
func Individual(track core.Track) []core.ClusterMarker {
	return Cluster(track, len(track))
}

func labelEndpoints(markers []core.ClusterMarker) {
	if len(markers) == 0 {
		return
	}
	markers[0].Label = core.LabelStart
	if len(markers) > 1 {
		markers[len(markers)-1].Label = core.LabelEnd
	}
}
