package telemetry

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

var logger = log.WithField("component", "telemetry")

// SetupLogging configures the global logrus logger. format is "json" or "text".
func SetupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "log level %q", level)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("unknown log format %q", format)
	}
	log.AddHook(traceHook{})
	return nil
}

// traceHook copies the trace and span id of entry.Context onto the entry.
type traceHook struct{}

func (traceHook) Levels() []log.Level { return log.AllLevels }

func (traceHook) Fire(e *log.Entry) error {
	if e.Context == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(e.Context)
	if sc.HasTraceID() {
		e.Data["trace_id"] = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		e.Data["span_id"] = sc.SpanID().String()
	}
	return nil
}
