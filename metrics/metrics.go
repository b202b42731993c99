// Package metrics exports engine exchanges as Prometheus metrics.
//
// A Collector is fed through the engine's call hook:
//
//	c := metrics.NewCollector()
//	c.MustRegister(prometheus.DefaultRegisterer)
//	session := cytomat.NewSession(port, cytomat.WithCallHook(c.Observe))
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/moffa90/go-cytomat/cytomat"
	"github.com/moffa90/go-cytomat/protocol"
)

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeFault     = "device_fault"
	OutcomeTimeout   = "timeout"
	OutcomeTransport = "transport"
	OutcomeFraming   = "framing"
	OutcomeDecode    = "decode"
	OutcomeEncoding  = "encoding"
	OutcomeCanceled  = "canceled"
	OutcomeError     = "error"
)

// Collector holds the cytomat metrics.
type Collector struct {
	Commands  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Faults    *prometheus.CounterVec
	Warnings  *prometheus.GaugeVec
	Discarded prometheus.Counter
}

// NewCollector creates unregistered metrics.
func NewCollector() *Collector {
	return &Collector{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cytomat_commands_total",
				Help: "Commands sent to the instrument, by outcome",
			},
			[]string{"command", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cytomat_command_duration_seconds",
				Help:    "Time from write to the end of the exchange",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"command"},
		),
		Faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cytomat_device_faults_total",
				Help: "Faults reported in the error register",
			},
			[]string{"fault"},
		),
		Warnings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cytomat_warning_active",
				Help: "Warning flags from the last response that carried the warning register",
			},
			[]string{"flag"},
		),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cytomat_stale_frames_discarded_total",
			Help: "Late responses to timed-out requests that were dropped",
		}),
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.Commands, c.Duration, c.Faults, c.Warnings, c.Discarded}
}

// Register registers every metric with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, m := range c.collectors() {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers every metric and panics on conflict.
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.collectors()...)
}

// Observe records one exchange. Its signature matches cytomat.CallHook.
func (c *Collector) Observe(ev cytomat.CallEvent) {
	c.Commands.WithLabelValues(ev.Command, Outcome(ev.Err)).Inc()
	if ev.State != cytomat.StateIdle {
		c.Duration.WithLabelValues(ev.Command).Observe(ev.Duration.Seconds())
	}
	if ev.Discarded > 0 {
		c.Discarded.Add(float64(ev.Discarded))
	}

	var de *protocol.DeviceError
	if errors.As(ev.Err, &de) {
		for _, fault := range de.Faults() {
			c.Faults.WithLabelValues(FaultName(fault)).Inc()
		}
	}

	if ev.State != cytomat.StateDecoded {
		return
	}
	if sig, ok := protocol.Lookup(ev.Command); ok && sig.HasWarningField() {
		c.setWarnings(ev.Warnings)
	}
}

func (c *Collector) setWarnings(w protocol.WarningStatus) {
	for _, f := range protocol.WarningFlags.Flags() {
		v := 0.0
		if w.Has(protocol.WarningStatus(1) << f.Bit) {
			v = 1
		}
		c.Warnings.WithLabelValues(f.Name).Set(v)
	}
}

// FaultName returns the flag name of a single-bit fault, or "unknown".
func FaultName(fault protocol.ErrorStatus) string {
	for bit := uint(0); bit < 32; bit++ {
		if fault == protocol.ErrorStatus(1)<<bit {
			if name, ok := protocol.ErrorFlags.Name(bit); ok {
				return name
			}
			break
		}
	}
	return "unknown"
}

// Outcome maps an Invoke error to an outcome label.
func Outcome(err error) string {
	var (
		encErr     *protocol.EncodingError
		framingErr *protocol.FramingError
		fieldErr   *protocol.MalformedFieldError
		codeErr    *protocol.UnknownCodeError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case protocol.IsDeviceError(err):
		return OutcomeFault
	case protocol.IsTimeout(err):
		return OutcomeTimeout
	case protocol.IsTransportError(err):
		return OutcomeTransport
	case errors.As(err, &framingErr):
		return OutcomeFraming
	case errors.As(err, &fieldErr), errors.As(err, &codeErr):
		return OutcomeDecode
	case errors.As(err, &encErr):
		return OutcomeEncoding
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	}
	return OutcomeError
}
