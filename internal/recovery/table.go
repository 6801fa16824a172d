package recovery

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fleetpulse/trackmap/pkg/core"
)

// Column identifies a table column.
type Column string

const (
	ColumnIndex    Column = "#"
	ColumnLat      Column = "Lat"
	ColumnLng      Column = "Lng"
	ColumnTime     Column = "Time"
	ColumnSpeed    Column = "Speed"
	ColumnAccuracy Column = "Accuracy"
)

// TableOptions controls sorting of the fallback table. The zero value keeps
// capture order.
type TableOptions struct {
	SortBy     Column
	Descending bool
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Columns returns the columns present in track. Speed and Accuracy are
// omitted when no point carries them.
func Columns(track core.Track) []Column {
	cols := []Column{ColumnIndex, ColumnLat, ColumnLng, ColumnTime}
	if track.HasSpeed() {
		cols = append(cols, ColumnSpeed)
	}
	if track.HasAccuracy() {
		cols = append(cols, ColumnAccuracy)
	}
	return cols
}

type row struct {
	index int
	point core.Point
}

// Table renders track as a bordered text table.
func Table(track core.Track, opts TableOptions) string {
	cols := Columns(track)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = string(c)
	}

	rows := sortRows(track, opts)
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = cell(r, c)
		}
		cells = append(cells, line)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(r, _ int) lipgloss.Style {
			if r == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// SortTrack returns a copy of track sorted by col. Points without a value
// for col sort last in both directions. The sort is stable.
func SortTrack(track core.Track, col Column, descending bool) core.Track {
	rows := sortRows(track, TableOptions{SortBy: col, Descending: descending})
	out := make(core.Track, len(rows))
	for i, r := range rows {
		out[i] = r.point
	}
	return out
}

func sortRows(track core.Track, opts TableOptions) []row {
	rows := make([]row, len(track))
	for i, p := range track {
		rows[i] = row{index: i, point: p}
	}
	if opts.SortBy == "" {
		return rows
	}

	slices.SortStableFunc(rows, func(a, b row) int {
		av, aok := value(a, opts.SortBy)
		bv, bok := value(b, opts.SortBy)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		if opts.Descending {
			return cmp.Compare(bv, av)
		}
		return cmp.Compare(av, bv)
	})
	return rows
}

func value(r row, col Column) (float64, bool) {
	p := r.point
	switch col {
	case ColumnIndex:
		return float64(r.index), true
	case ColumnLat:
		return p.Lat, true
	case ColumnLng:
		return p.Lng, true
	case ColumnTime:
		if p.Time.IsZero() {
			return 0, false
		}
		return float64(p.Time.UnixNano()), true
	case ColumnSpeed:
		if p.Speed == nil {
			return 0, false
		}
		return *p.Speed, true
	case ColumnAccuracy:
		if p.Accuracy == nil {
			return 0, false
		}
		return *p.Accuracy, true
	}
	return 0, false
}

func cell(r row, col Column) string {
	p := r.point
	switch col {
	case ColumnIndex:
		return strconv.Itoa(r.index + 1)
	case ColumnLat:
		return strconv.FormatFloat(p.Lat, 'f', 6, 64)
	case ColumnLng:
		return strconv.FormatFloat(p.Lng, 'f', 6, 64)
	case ColumnTime:
		if p.Time.IsZero() {
			return "-"
		}
		return p.Time.UTC().Format(time.RFC3339)
	case ColumnSpeed:
		return optional(p.Speed)
	case ColumnAccuracy:
		return optional(p.Accuracy)
	}
	return ""
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
