package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fleetpulse/trackmap/internal/dispatcher"
	"github.com/fleetpulse/trackmap/pkg/streaming"
)

// ErrUnknownView is returned for widget events addressed to no live view.
var ErrUnknownView = errors.New("unknown view")

// Registry tracks the live views that widget events can be routed to.
type Registry struct {
	mu    sync.RWMutex
	views map[string]*View
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*View)}
}

// Add registers v under its id.
func (r *Registry) Add(v *View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[v.ID()] = v
}

// Remove forgets the view with id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, id)
}

// Lookup returns the view addressed by id. An empty id resolves to the only
// registered view.
func (r *Registry) Lookup(id string) (*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == "" {
		if len(r.views) == 1 {
			for _, v := range r.views {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%w: event without view id", ErrUnknownView)
	}
	v, ok := r.views[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	return v, nil
}

// RegisterHandlers routes the widget's inbound events to the views in reg.
// Handlers are buffered so a slow view never blocks the widget read loop.
func RegisterHandlers(d *dispatcher.Dispatcher, reg *Registry, bufferSize int) {
	opts := []dispatcher.Option{dispatcher.Buffered(bufferSize), dispatcher.Logged()}

	on := func(eventType string, fn func(*View, dispatcher.Event) error) {
		d.Register(eventType, func(e dispatcher.Event) (any, error) {
			v, err := reg.Lookup(e.ViewID)
			if err != nil {
				return nil, err
			}
			return nil, fn(v, e)
		}, opts...)
	}

	on(streaming.TypeTileError, func(v *View, e dispatcher.Event) error {
		var p streaming.TileErrorPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		v.TileError(p.URL)
		return nil
	})
	on(streaming.TypeRenderError, func(v *View, e dispatcher.Event) error {
		var p streaming.RenderErrorPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		msg := p.Message
		if msg == "" {
			msg = "unspecified widget failure"
		}
		v.RenderFailed(fmt.Errorf("widget: %s", msg))
		return nil
	})
	on(streaming.TypeMounted, func(v *View, _ dispatcher.Event) error {
		v.InteractiveMounted()
		return nil
	})
	on(streaming.TypeUpgrade, func(v *View, _ dispatcher.Event) error {
		v.RequestUpgrade()
		return nil
	})
	on(streaming.TypeDowngrade, func(v *View, _ dispatcher.Event) error {
		v.Downgrade()
		return nil
	})
	on(streaming.TypeRetry, func(v *View, _ dispatcher.Event) error {
		v.Retry()
		return nil
	})
}

// EventFromEnvelope converts a widget envelope into a dispatcher event.
func EventFromEnvelope(env streaming.Envelope) dispatcher.Event {
	return dispatcher.Event{Type: env.Type, ViewID: env.ViewID, Payload: env.Payload}
}
