package fetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ProfilesGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udiddirector",
		Subsystem: "profiles",
		Name:      "generated_total",
		Help:      "Total number of enrollment profiles generated.",
	})

	DevicesResolved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udiddirector",
		Subsystem: "devices",
		Name:      "resolved_total",
		Help:      "Total number of device identities resolved.",
	})

	ResolveFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udiddirector",
		Subsystem: "devices",
		Name:      "resolve_failures_total",
		Help:      "Total number of failed identity resolutions.",
	})
)

// Metrics registers the workflow counters and starts gauges tracking the
// registry sizes. Call once at startup.
func (f *Fetcher) Metrics() {
	prometheus.MustRegister(ProfilesGenerated)
	prometheus.MustRegister(DevicesResolved)
	prometheus.MustRegister(ResolveFailures)

	outstandingFlows := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "udiddirector",
		Subsystem: "flows",
		Name:      "count",
		Help:      "Number of outstanding enrollment flows.",
	})
	prometheus.MustRegister(outstandingFlows)

	pendingDevices := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "udiddirector",
		Subsystem: "devices",
		Name:      "count",
		Help:      "Number of resolved devices awaiting final handoff.",
	})
	prometheus.MustRegister(pendingDevices)

	// update the registry gauges every 10 seconds
	go func() {
		for range time.Tick(time.Second * 10) {
			outstandingFlows.Set(float64(f.flows.Len()))
			pendingDevices.Set(float64(f.devices.Len()))
		}
	}()
}
