package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/moffa90/go-cytomat/cytomat"
	"github.com/moffa90/go-cytomat/metrics"
	"github.com/moffa90/go-cytomat/protocol"
)

// printCommands lists every known command with its arguments and reply shape.
func printCommands(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tARGS\tREPLY\tDESCRIPTION")
	for _, sig := range protocol.Signatures() {
		args := make([]string, len(sig.Args))
		for i, a := range sig.Args {
			args[i] = fmt.Sprintf("<%s:%s>", a.Name, a.Kind)
		}
		reply := make([]string, len(sig.Response))
		for i, k := range sig.Response {
			reply[i] = k.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sig.Name, strings.Join(args, " "), strings.Join(reply, ";"), sig.Summary)
	}
	tw.Flush()
}

// raw sends one command given as text and prints the decoded reply.
func (a *app) raw(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: raw <command> [args...]")
	}
	sig, ok := protocol.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown command %q, see 'cytomat commands'", args[0])
	}
	values, err := protocol.ParseArgs(sig, args[1:])
	if err != nil {
		return err
	}

	resp, err := a.session.Engine().Invoke(ctx, sig.Name, values...)
	var de *protocol.DeviceError
	if errors.As(err, &de) {
		for _, fault := range de.Faults() {
			fmt.Fprintf(a.out, "fault: %s\n", fault.String())
		}
		if de.Warnings != 0 {
			fmt.Fprintf(a.out, "warnings: %s\n", de.Warnings)
		}
	}
	if err != nil {
		return err
	}

	writeResponse(a.out, sig, resp)
	return nil
}

// writeResponse prints one line per reply field.
func writeResponse(w io.Writer, sig protocol.Signature, resp *protocol.Response) {
	v := 0
	for i, kind := range sig.Response {
		switch kind {
		case protocol.FieldWarning:
			fmt.Fprintf(w, "%-12s %s\n", kind.String()+":", resp.Warnings)
		case protocol.FieldError:
			fmt.Fprintf(w, "%-12s %s\n", kind.String()+":", resp.Errors)
		default:
			if v < len(resp.Values) {
				fmt.Fprintf(w, "%-12s %v\n", kind.String()+":", resp.Values[v])
			} else {
				fmt.Fprintf(w, "%-12s %s\n", kind.String()+":", resp.Fields[i])
			}
			v++
		}
	}
}

// Report is a snapshot of the device registers and climate.
type Report struct {
	Overview protocol.OverviewStatus
	Action   cytomat.ActionReport
	Warnings protocol.WarningStatus
	Errors   protocol.ErrorStatus
	Climate  map[string]cytomat.Reading

	// Failed holds per-reading errors that did not abort the report
	Failed map[string]error
}

// readStatus queries the status registers and climate readings. Register
// reads abort the report; climate reads that fail are recorded in Failed.
func readStatus(ctx context.Context, s *cytomat.Session) (Report, error) {
	r := Report{Climate: map[string]cytomat.Reading{}, Failed: map[string]error{}}

	var err error
	if r.Overview, err = s.Maintenance.Overview(ctx); err != nil {
		return r, err
	}
	if r.Action, err = s.Maintenance.ActionStatus(ctx); err != nil {
		return r, err
	}
	if r.Warnings, err = s.Maintenance.Warnings(ctx); err != nil {
		return r, err
	}
	if r.Errors, err = s.Maintenance.Errors(ctx); err != nil {
		return r, err
	}

	for _, q := range []struct {
		name string
		read func(context.Context) (cytomat.Reading, error)
	}{
		{"temperature", s.Climate.Temperature},
		{"co2", s.Climate.CO2},
		{"humidity", s.Climate.Humidity},
		{"n2", s.Climate.N2},
	} {
		reading, err := q.read(ctx)
		if err != nil {
			if !protocol.IsDeviceError(err) {
				return r, err
			}
			r.Failed[q.name] = err
			continue
		}
		r.Climate[q.name] = reading
	}
	return r, nil
}

func writeReport(w io.Writer, r Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "overview:\t%s\n", r.Overview)
	fmt.Fprintf(tw, "action:\t%s %s (%s)\n", r.Action.Type, r.Action.Target, r.Action.Status)
	fmt.Fprintf(tw, "warnings:\t%s\n", r.Warnings)
	fmt.Fprintf(tw, "errors:\t%s\n", r.Errors)
	for _, name := range []string{"temperature", "co2", "humidity", "n2"} {
		if reading, ok := r.Climate[name]; ok {
			fmt.Fprintf(tw, "%s:\t%g (setpoint %g)\n", name, reading.Actual, reading.Setpoint)
		} else if err, ok := r.Failed[name]; ok {
			fmt.Fprintf(tw, "%s:\t%v\n", name, err)
		}
	}
	tw.Flush()
}

func (a *app) status(ctx context.Context, _ []string) error {
	r, err := readStatus(ctx, a.session)
	if err != nil {
		return err
	}
	writeReport(a.out, r)
	return nil
}

// watchWithMetrics returns the watch subcommand and the engine options it
// needs. With metrics enabled every exchange feeds a Prometheus collector
// served on the configured address.
func (a *app) watchWithMetrics(opts []cytomat.Option) (func(context.Context, []string) error, []cytomat.Option) {
	if !a.cfg.Metrics.Enabled {
		return func(ctx context.Context, args []string) error {
			return a.watch(ctx, args, nil)
		}, opts
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	c := metrics.NewCollector()
	c.MustRegister(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	return func(ctx context.Context, args []string) error {
		return a.watch(ctx, args, srv)
	}, append(opts, cytomat.WithCallHook(c.Observe))
}

// watch polls the device status until ctx is canceled.
func (a *app) watch(ctx context.Context, args []string, srv *http.Server) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(a.out)
	interval := fs.Duration("interval", 10*time.Second, "poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", *interval)
	}

	if srv != nil {
		go func() {
			a.log.Infof("metrics listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("metrics server")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var last protocol.WarningStatus
	for {
		r, err := readStatus(ctx, a.session)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			a.log.WithError(err).Warn("status poll failed")
		default:
			a.logReport(r, last)
			last = r.Warnings
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *app) logReport(r Report, lastWarnings protocol.WarningStatus) {
	fields := logrus.Fields{
		"overview": r.Overview.String(),
		"action":   fmt.Sprintf("%s %s", r.Action.Type, r.Action.Target),
	}
	for name, reading := range r.Climate {
		fields[name] = reading.Actual
	}
	a.log.WithFields(fields).Info("status")

	if r.Warnings != lastWarnings {
		a.log.WithField("warnings", r.Warnings.String()).Warn("warnings changed")
	}
	if r.Errors != 0 {
		a.log.WithField("errors", r.Errors.String()).Error("device fault pending")
	}
	for name, err := range r.Failed {
		a.log.WithError(err).Warnf("%s reading failed", name)
	}
}
