package recovery

import (
	"fmt"
	"io"
	"strings"

	"github.com/fleetpulse/trackmap/pkg/core"
)

// FallbackProps is handed to a fallback renderer. OnRetry is nil once the
// retry budget is spent.
type FallbackProps struct {
	Err              error
	OnRetry          func()
	Track            core.Track
	RetryBudget      int
	MaxRetries       int
	TilesUnavailable bool
}

// FallbackRenderer draws the view shown instead of the map.
type FallbackRenderer interface {
	RenderFallback(props FallbackProps) error
}

// FallbackFunc adapts a function to FallbackRenderer.
type FallbackFunc func(props FallbackProps) error

// RenderFallback calls f.
func (f FallbackFunc) RenderFallback(props FallbackProps) error {
	return f(props)
}

// TableView is the default fallback: a plain text table of the track.
type TableView struct {
	w    io.Writer
	opts TableOptions
}

// NewTableView creates a table fallback writing to w.
func NewTableView(w io.Writer, opts TableOptions) *TableView {
	return &TableView{w: w, opts: opts}
}

// SortBy changes the sort order used by later renders.
func (v *TableView) SortBy(col Column, descending bool) {
	v.opts.SortBy = col
	v.opts.Descending = descending
}

// RenderFallback writes a status header followed by the track table.
func (v *TableView) RenderFallback(props FallbackProps) error {
	var b strings.Builder

	switch {
	case props.TilesUnavailable:
		b.WriteString("Map tiles unavailable, showing the track as a table.\n")
	case props.Err != nil:
		fmt.Fprintf(&b, "Map failed to render: %v\n", props.Err)
	}
	if props.OnRetry != nil {
		fmt.Fprintf(&b, "Retry available (%d of %d used).\n", props.RetryBudget, props.MaxRetries)
	} else if props.Err != nil {
		b.WriteString("Retry limit reached.\n")
	}

	b.WriteString(Table(props.Track, v.opts))
	b.WriteString("\n")

	_, err := io.WriteString(v.w, b.String())
	return err
}
