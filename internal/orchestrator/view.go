package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fleetpulse/trackmap/internal/geo"
	"github.com/fleetpulse/trackmap/internal/loader"
	"github.com/fleetpulse/trackmap/internal/path"
	"github.com/fleetpulse/trackmap/internal/perf"
	"github.com/fleetpulse/trackmap/internal/recovery"
	"github.com/fleetpulse/trackmap/internal/render"
	"github.com/fleetpulse/trackmap/internal/schedule"
	"github.com/fleetpulse/trackmap/internal/tiles"
	"github.com/fleetpulse/trackmap/internal/timeutil"
	"github.com/fleetpulse/trackmap/pkg/core"
)

var (
	// ErrNoRenderer is returned by NewView without a renderer.
	ErrNoRenderer = errors.New("view needs a renderer")
	// ErrNoLoader is returned by Load when the view has no loader.
	ErrNoLoader = errors.New("view has no loader")
	// ErrClosed is returned by Load after Close.
	ErrClosed = errors.New("view closed")
)

// Dependencies are the collaborators of a view. Only Renderer is required.
type Dependencies struct {
	Renderer render.Renderer
	// Fallback replaces the default table written to stdout.
	Fallback recovery.FallbackRenderer
	Tiles    *tiles.Chain
	Loader   *loader.Loader
	Monitor  *perf.Monitor
	Clock    timeutil.Clock
	Logger   *slog.Logger

	OnPathUpdate      func([]core.ClusterMarker)
	OnProgress        func(core.LoadProgress)
	OnUpgradeProgress func(float64)
	OnStateChange     func(core.LoadingState)
	OnError           func(error)
}

// View is one mounted map. All state transitions run one at a time on the
// view's serializer; timers and widget events post into it and are
// discarded once the view is closed.
type View struct {
	id       string
	opts     Options
	deps     Dependencies
	logger   *slog.Logger
	clock    timeutil.Clock
	renderer render.Renderer
	fallback recovery.FallbackRenderer
	tiles    *tiles.Chain
	monitor  *perf.Monitor
	boundary *recovery.Boundary

	exec      schedule.Serializer
	debouncer *schedule.Debouncer[core.Track]
	ticker    *schedule.Ticker
	settle    timeutil.Timer
	settleGen uint64

	active atomic.Bool

	// The fields below are written on the serializer and read by getters.
	mu              sync.RWMutex
	deviceID        string
	state           core.LoadingState
	impl            core.MapImplementation
	rendered        bool
	intent          bool
	autoUpgraded    bool
	track           core.Track
	result          path.Result
	processed       bool
	upgradeProgress float64
	loadProgress    core.LoadProgress
	lastErr         error
	endInitial      func() perf.Sample
}

// NewView creates a view in the Idle state.
func NewView(opts Options, deps Dependencies) (*View, error) {
	if deps.Renderer == nil {
		return nil, ErrNoRenderer
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid view options: %w", err)
	}

	id := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("view", id)

	clock := deps.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	chain := deps.Tiles
	if chain == nil {
		var err error
		chain, err = tiles.New(tiles.DefaultProviders, logger)
		if err != nil {
			return nil, err
		}
	}

	monitor := deps.Monitor
	if monitor == nil {
		var err error
		monitor, err = perf.New(perf.DefaultConfig(), clock, logger)
		if err != nil {
			return nil, err
		}
	}

	fallback := deps.Fallback
	if fallback == nil {
		fallback = recovery.NewTableView(os.Stdout, recovery.TableOptions{})
	}

	v := &View{
		id:       id,
		opts:     opts,
		deps:     deps,
		logger:   logger,
		clock:    clock,
		renderer: deps.Renderer,
		fallback: fallback,
		tiles:    chain,
		monitor:  monitor,
		boundary: recovery.NewBoundary(opts.MaxRetries, logger),
		intent:   opts.UserRequestedInteractive,
		state:    core.Idle,
		impl:     core.Lightweight,
	}
	v.active.Store(true)

	v.debouncer = schedule.NewDebouncer(clock, opts.Debounce, func(t core.Track) {
		v.exec.Do(func() { v.process(t) })
	})
	v.ticker = schedule.NewTicker(clock, opts.TickInterval, func() {
		v.exec.Do(v.tick)
	})

	logger.Debug("View created", "interactive", opts.UserRequestedInteractive)
	return v, nil
}

// Load fetches the track of deviceID through the loader and hands it to
// SetTrack. On a failed chunk the partial track is still shown and the
// error is returned alongside it.
func (v *View) Load(ctx context.Context, deviceID string) (core.Track, error) {
	if v.deps.Loader == nil {
		return nil, ErrNoLoader
	}
	if !v.active.Load() {
		return nil, ErrClosed
	}

	v.exec.Do(func() {
		v.mu.Lock()
		v.deviceID = deviceID
		v.loadProgress = core.LoadProgress{}
		v.mu.Unlock()
		v.setState(core.LoadingData)
	})

	labels := map[string]string{"device": deviceID, "view": v.id}
	end := v.monitor.Begin(perf.PhaseDataFetch, labels)
	track, err := v.deps.Loader.Load(ctx, deviceID, func(p core.LoadProgress) {
		v.exec.Do(func() {
			if !v.active.Load() {
				return
			}
			v.mu.Lock()
			v.loadProgress = p
			v.mu.Unlock()
			if v.deps.OnProgress != nil {
				v.deps.OnProgress(p)
			}
		})
	})
	end()

	if err != nil {
		v.logger.Error("Track load failed", "device", deviceID, "points", len(track), "error", err)
		if len(track) > 0 {
			v.SetTrack(track)
		}
		v.exec.Do(func() {
			if !v.active.Load() {
				return
			}
			v.setErr(err)
			if v.deps.OnError != nil {
				v.deps.OnError(err)
			}
		})
		return track, err
	}

	v.logger.Info("Track loaded", "device", deviceID, "points", len(track))
	v.SetTrack(track)
	return track, nil
}

// SetTrack replaces the displayed track. Path processing is debounced and
// the implementation is mounted once the settle delay has passed.
func (v *View) SetTrack(track core.Track) {
	v.exec.Do(func() {
		if !v.active.Load() {
			return
		}

		v.mu.Lock()
		v.track = track
		if v.endInitial == nil && !v.rendered {
			v.endInitial = v.monitor.Begin(perf.PhaseInitialRender, map[string]string{"view": v.id})
		}
		v.mu.Unlock()

		v.ticker.Stop()
		v.setState(core.LoadingData)
		v.debouncer.Trigger(track)

		if v.settle != nil {
			v.settle.Stop()
		}
		v.settleGen++
		gen := v.settleGen
		v.settle = v.clock.AfterFunc(v.opts.SettleDelay, func() {
			v.exec.Do(func() { v.settled(gen) })
		})
	})
}

// RequestUpgrade records the user's wish for the interactive map. It takes
// effect immediately when the view is Ready, otherwise once it settles.
func (v *View) RequestUpgrade() {
	v.exec.Do(v.requestUpgrade)
}

// InteractiveMounted is called when an asynchronous renderer reports the
// interactive map ready.
func (v *View) InteractiveMounted() {
	v.exec.Do(v.interactiveMounted)
}

// Downgrade clears the user's interactive intent and returns to the
// lightweight map with the same track.
func (v *View) Downgrade() {
	v.exec.Do(func() {
		if !v.active.Load() {
			return
		}
		v.mu.Lock()
		v.intent = false
		v.mu.Unlock()

		v.ticker.Stop()
		v.setUpgradeProgress(0)
		v.logger.Info("Downgrade requested")

		if v.state == core.LoadingData {
			return
		}
		v.reselect(false)
	})
}

// TileError reports a failed tile. The tile chain advances and the
// interactive map is re-rendered with the next provider; once every
// provider has failed the view falls back to the table.
func (v *View) TileError(tileURL string) {
	v.exec.Do(func() {
		if !v.active.Load() {
			return
		}
		fo := v.tiles.Fail(tileURL)
		switch {
		case fo.NewlyExhausted:
			if v.rendered && v.state != core.LoadingData {
				v.reselect(false)
			}
		case fo.Advanced && v.impl == core.Interactive && v.rendered && v.state != core.Error:
			v.attemptInteractive()
		}
	})
}

// RenderFailed reports a failure raised inside an asynchronous renderer.
// It is handled like a failed render call.
func (v *View) RenderFailed(err error) {
	v.exec.Do(func() {
		if !v.active.Load() || v.impl != core.Interactive || err == nil {
			return
		}
		// widget-side failures spend the same retry budget
		outcome := v.boundary.Attempt(func() error { return err })
		if !outcome.OK() {
			v.renderFailed(outcome)
		}
	})
}

// Retry re-renders the interactive map after a caught failure.
func (v *View) Retry() {
	v.exec.Do(func() {
		if !v.active.Load() {
			return
		}
		if err := v.boundary.Retry(); err != nil {
			v.logger.Warn("Retry rejected", "error", err)
			if errors.Is(err, recovery.ErrRetryExhausted) {
				v.reselect(false)
			}
			return
		}
		v.beginUpgrade()
	})
}

// Close tears the view down. Pending timers and late events are dropped.
func (v *View) Close() {
	if !v.active.Swap(false) {
		return
	}
	v.exec.Do(func() {
		if v.settle != nil {
			v.settle.Stop()
		}
		v.debouncer.Stop()
		v.ticker.Stop()
		v.logger.Debug("View closed")
	})
}

// settled mounts the implementation once the settle delay has passed.
// A pending debounced run is flushed first so the mount sees the final
// path.
func (v *View) settled(gen uint64) {
	if !v.active.Load() || gen != v.settleGen {
		return
	}
	if v.debouncer.Flush() {
		// the flushed processing is queued; mount after it
		v.exec.Do(v.mount)
		return
	}
	v.mount()
}

func (v *View) mount() {
	if !v.active.Load() {
		return
	}
	v.reselect(true)
	if v.impl == core.Lightweight && v.state == core.Ready {
		v.maybeAutoUpgrade()
	}
}

func (v *View) process(t core.Track) {
	if !v.active.Load() {
		return
	}

	end := v.monitor.Begin(perf.PhaseSimplification, map[string]string{"view": v.id})
	res := path.Process(t, v.opts.PathOptions())
	end()

	v.logger.Debug("Processed track",
		"points", len(t), "simplified", len(res.Simplified), "markers", len(res.Markers))

	changed := !v.processed || !core.MarkersEqual(res.Markers, v.result.Markers)

	v.mu.Lock()
	v.result = res
	v.processed = true
	v.mu.Unlock()

	if !changed {
		return
	}
	if v.deps.OnPathUpdate != nil {
		markers := make([]core.ClusterMarker, len(res.Markers))
		copy(markers, res.Markers)
		v.deps.OnPathUpdate(markers)
	}
	if v.rendered && v.state != core.LoadingData {
		v.rerender()
	}
}

// effective evaluates selection for the current inputs. An interactive
// map whose boundary is exhausted is replaced by the fallback.
func (v *View) effective() core.MapImplementation {
	impl := Select(SelectionContext{
		PathLength:               len(v.track),
		UserRequestedInteractive: v.intent,
		TileSourceExhausted:      v.tiles.Exhausted(),
		Threshold:                v.opts.InteractiveThreshold,
	})
	if impl == core.Interactive && v.boundary.Exhausted() {
		return core.Fallback
	}
	return impl
}

// reselect swaps the implementation when selection changed, or always
// when force is set.
func (v *View) reselect(force bool) {
	next := v.effective()
	if !force && v.rendered && next == v.impl {
		return
	}

	prev := v.impl
	v.mu.Lock()
	v.impl = next
	v.mu.Unlock()
	if prev != next || !v.rendered {
		v.logger.Info("Map implementation selected",
			"from", prev.String(), "to", next.String(), "points", len(v.track))
	}

	switch next {
	case core.Interactive:
		v.beginUpgrade()
	case core.Lightweight:
		v.ticker.Stop()
		if v.renderLightweight() {
			v.setReady()
		}
	case core.Fallback:
		v.ticker.Stop()
		v.renderPermanentFallback()
		v.setReady()
	}
}

func (v *View) rerender() {
	switch v.impl {
	case core.Interactive:
		v.attemptInteractive()
	case core.Lightweight:
		v.renderLightweight()
	case core.Fallback:
		v.renderPermanentFallback()
	}
}

func (v *View) requestUpgrade() {
	if !v.active.Load() {
		return
	}
	v.mu.Lock()
	already := v.intent
	v.intent = true
	v.mu.Unlock()
	if already && v.impl == core.Interactive {
		return
	}

	v.logger.Info("Upgrade requested", "state", v.state.String())
	if v.state == core.Ready {
		v.reselect(false)
	}
}

func (v *View) maybeAutoUpgrade() {
	n := len(v.track)
	if !v.opts.AutoUpgradeForSmallTracks || v.autoUpgraded || v.intent {
		return
	}
	if n < 1 || n >= v.opts.InteractiveThreshold {
		return
	}
	v.autoUpgraded = true
	v.logger.Debug("Auto upgrading small track", "points", n)
	v.requestUpgrade()
}

// beginUpgrade enters Upgrading, starts the progress ramp and renders the
// interactive map through the boundary.
func (v *View) beginUpgrade() {
	v.setState(core.Upgrading)
	v.setUpgradeProgress(0)
	v.ticker.Start()
	v.attemptInteractive()
}

// attemptInteractive renders the interactive map through the boundary. An
// asynchronous renderer is only counted as recovered once it reports the
// map mounted.
func (v *View) attemptInteractive() {
	async := render.IsAsync(v.renderer)
	var outcome recovery.Outcome
	if async {
		outcome = v.boundary.AttemptPending(v.renderInteractive)
	} else {
		outcome = v.boundary.Attempt(v.renderInteractive)
	}
	if !outcome.OK() {
		v.renderFailed(outcome)
		return
	}
	v.mu.Lock()
	v.rendered = true
	v.mu.Unlock()
	if !async {
		v.interactiveMounted()
	}
}

func (v *View) tick() {
	if !v.active.Load() || v.state != core.Upgrading {
		return
	}
	p := min(v.upgradeProgress+v.opts.TickStep, v.opts.TickCap)
	if p != v.upgradeProgress {
		v.setUpgradeProgress(p)
	}
}

func (v *View) interactiveMounted() {
	if !v.active.Load() || v.impl != core.Interactive {
		return
	}
	// re-renders after a tile failover are confirmed while Ready
	if v.boundary.Pending() {
		v.boundary.Confirm()
	}
	if v.state != core.Upgrading {
		return
	}
	v.ticker.Stop()
	v.setUpgradeProgress(100)
	v.setReady()
	v.logger.Info("Interactive map mounted", "provider", v.tiles.Current().URLTemplate)
}

// renderFailed moves to Error and offers the fallback with a retry action.
// Once the budget is spent the permanent fallback replaces the map.
func (v *View) renderFailed(outcome recovery.Outcome) {
	v.ticker.Stop()
	v.setErr(outcome.Err)
	v.setState(core.Error)
	if v.deps.OnError != nil {
		v.deps.OnError(outcome.Err)
	}

	if v.boundary.Exhausted() {
		v.reselect(false)
		return
	}

	props := recovery.FallbackProps{
		Err:         outcome.Err,
		OnRetry:     v.Retry,
		Track:       v.track,
		RetryBudget: v.boundary.Budget(),
		MaxRetries:  v.boundary.MaxRetries(),
	}
	if err := v.fallback.RenderFallback(props); err != nil {
		v.logger.Error("Failed to render fallback", "error", err)
	}
}

func (v *View) renderPermanentFallback() {
	var err error
	if caught := v.boundary.Caught(); caught != nil {
		err = caught
	}
	props := recovery.FallbackProps{
		Err:              err,
		Track:            v.track,
		RetryBudget:      v.boundary.Budget(),
		MaxRetries:       v.boundary.MaxRetries(),
		TilesUnavailable: v.tiles.Exhausted(),
	}
	if ferr := v.fallback.RenderFallback(props); ferr != nil {
		v.logger.Error("Failed to render fallback", "error", ferr)
	}
	v.mu.Lock()
	v.rendered = true
	v.mu.Unlock()
}

func (v *View) renderLightweight() bool {
	if err := v.drawLightweight(); err != nil {
		err = fmt.Errorf("render lightweight map: %w", err)
		v.logger.Error("Render failed", "implementation", core.Lightweight.String(), "error", err)
		v.setErr(err)
		v.setState(core.Error)
		if v.deps.OnError != nil {
			v.deps.OnError(err)
		}
		return false
	}
	v.mu.Lock()
	v.rendered = true
	v.mu.Unlock()
	return true
}

func (v *View) drawLightweight() error {
	if err := v.resetRenderer(); err != nil {
		return err
	}
	if len(v.result.Simplified) == 0 {
		return nil
	}
	if err := v.fitViewport(v.tiles.Current().MaxZoom); err != nil {
		return err
	}
	if err := v.renderer.RenderPolyline(v.result.Simplified, render.DefaultPolylineStyle); err != nil {
		return err
	}
	for _, m := range v.result.Markers {
		if m.Label == core.LabelNone {
			continue
		}
		if err := v.renderer.RenderMarker(m.Representative, render.IconFor(m), render.Popup(m)); err != nil {
			return err
		}
	}
	return nil
}

func (v *View) renderInteractive() error {
	provider := v.tiles.Current()
	if err := v.resetRenderer(); err != nil {
		return err
	}
	if err := v.renderer.RenderTileLayer(provider.URLTemplate, provider.Attribution, provider.MaxZoom, v.TileError); err != nil {
		return fmt.Errorf("tile layer: %w", err)
	}
	if len(v.result.Simplified) == 0 {
		return nil
	}
	if err := v.fitViewport(provider.MaxZoom); err != nil {
		return err
	}
	if err := v.renderer.RenderPolyline(v.result.Simplified, render.DefaultPolylineStyle); err != nil {
		return fmt.Errorf("polyline: %w", err)
	}
	for _, m := range v.result.Markers {
		if err := v.renderer.RenderMarker(m.Representative, render.IconFor(m), render.Popup(m)); err != nil {
			return fmt.Errorf("marker: %w", err)
		}
	}
	return nil
}

func (v *View) resetRenderer() error {
	if r, ok := v.renderer.(render.Resetter); ok {
		return r.Reset()
	}
	return nil
}

func (v *View) fitViewport(maxZoom int) error {
	vp, ok := v.renderer.(render.Viewporter)
	if !ok {
		return nil
	}
	b, err := geo.TrackBounds(v.result.Simplified)
	if err != nil {
		if !errors.Is(err, geo.ErrEmptyTrack) {
			v.logger.Warn("Cannot fit viewport to track", "error", err)
		}
		return nil
	}
	lat, lng := b.Center()
	zoom := geo.FitZoom(b, v.opts.Viewport.Width, v.opts.Viewport.Height, maxZoom)
	return vp.SetViewport(render.Viewport{Center: core.Point{Lat: lat, Lng: lng}, Zoom: zoom})
}

func (v *View) setState(s core.LoadingState) {
	v.mu.Lock()
	prev := v.state
	v.state = s
	v.mu.Unlock()
	if prev == s {
		return
	}
	v.logger.Debug("State changed", "from", prev.String(), "to", s.String())
	if v.deps.OnStateChange != nil {
		v.deps.OnStateChange(s)
	}
}

// setReady enters Ready and closes the initial render phase on the first
// rendered Ready.
func (v *View) setReady() {
	v.setState(core.Ready)
	if !v.rendered {
		return
	}
	v.mu.Lock()
	end := v.endInitial
	v.endInitial = nil
	v.mu.Unlock()
	if end != nil {
		end()
	}
}

func (v *View) setUpgradeProgress(p float64) {
	v.mu.Lock()
	v.upgradeProgress = p
	v.mu.Unlock()
	if v.deps.OnUpgradeProgress != nil {
		v.deps.OnUpgradeProgress(p)
	}
}

func (v *View) setErr(err error) {
	v.mu.Lock()
	v.lastErr = err
	v.mu.Unlock()
}

// ID returns the view's instance id.
func (v *View) ID() string { return v.id }

// State returns the loading state.
func (v *View) State() core.LoadingState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Implementation returns the mounted map implementation.
func (v *View) Implementation() core.MapImplementation {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.impl
}

// UserRequestedInteractive reports the current upgrade intent.
func (v *View) UserRequestedInteractive() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.intent
}

// UpgradeProgress returns the perceived upgrade progress in [0,100].
func (v *View) UpgradeProgress() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.upgradeProgress
}

// LoadProgress returns the last reported load progress.
func (v *View) LoadProgress() core.LoadProgress {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loadProgress
}

// Track returns the current source track.
func (v *View) Track() core.Track {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.track
}

// Markers returns the latest processed markers.
func (v *View) Markers() []core.ClusterMarker {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]core.ClusterMarker, len(v.result.Markers))
	copy(out, v.result.Markers)
	return out
}

// Simplified returns the latest simplified track.
func (v *View) Simplified() core.Track {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.result.Simplified
}

// RetryBudget returns the boundary's retry budget.
func (v *View) RetryBudget() int {
	return v.boundary.Budget()
}

// Err returns the last error reported by the view.
func (v *View) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastErr
}

// Monitor returns the view's performance monitor.
func (v *View) Monitor() *perf.Monitor {
	return v.monitor
}

// DeviceID returns the device of the last Load.
func (v *View) DeviceID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.deviceID
}
