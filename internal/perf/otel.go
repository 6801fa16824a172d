package perf

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fleetpulse/trackmap/internal/perf"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
