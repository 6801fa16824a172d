package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope used for OTel log records.
const ServiceName = "trackmap"

var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// ContextProvider returns the session attributes stamped on every record,
// such as the rendered device.
type ContextProvider func() []slog.Attr

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger  *slog.Logger
	context ContextProvider

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetContextProvider registers attributes added to every record. It takes
// effect on the next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context = p
}

// Setup initializes the logging system. Records go to file when given,
// otherwise to stdout. If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	lvl := parseLevel(level)
	m.logProvider = provider

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	var handler slog.Handler = newFanout(handlers...)
	if m.context != nil {
		handler = &sessionHandler{inner: handler, attrs: m.context}
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// fanout hands every record to the log file or console handler and to the
// OTel bridge. A failing sink does not keep the record from the others.
type fanout struct {
	sinks []slog.Handler
}

func newFanout(sinks ...slog.Handler) *fanout {
	f := &fanout{}
	for _, h := range sinks {
		if h != nil {
			f.sinks = append(f.sinks, h)
		}
	}
	return f
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) derive(fn func(slog.Handler) slog.Handler) *fanout {
	sinks := make([]slog.Handler, len(f.sinks))
	for i, h := range f.sinks {
		sinks[i] = fn(h)
	}
	return &fanout{sinks: sinks}
}

// sessionHandler stamps the ContextProvider attributes on each record.
// The provider is called per record, so the attributes may change during a
// session.
type sessionHandler struct {
	inner slog.Handler
	attrs ContextProvider
}

func (h *sessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *sessionHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs()...)
	return h.inner.Handle(ctx, r)
}

func (h *sessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionHandler{inner: h.inner.WithAttrs(attrs), attrs: h.attrs}
}

func (h *sessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &sessionHandler{inner: h.inner.WithGroup(name), attrs: h.attrs}
}
