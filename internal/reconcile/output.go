package reconcile

import (
	"fmt"
	"io"
	"log/slog"
)

// Output receives the human-readable lines of a run: change-log lines,
// warnings and the final report.
type Output struct {
	w      io.Writer
	logger *slog.Logger
}

// NewOutput writes lines to w and mirrors warnings to logger. A nil logger
// disables the mirroring.
func NewOutput(w io.Writer, logger *slog.Logger) *Output {
	if w == nil {
		w = io.Discard
	}
	return &Output{w: w, logger: logger}
}

// Printf writes one line.
func (o *Output) Printf(format string, args ...any) {
	fmt.Fprintf(o.w, format+"\n", args...)
}

// Warnf writes one warning line.
func (o *Output) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(o.w, "WARNING: "+msg)
	if o.logger != nil {
		o.logger.Warn(msg)
	}
}

// Report writes the report lines of c.
func (o *Output) Report(c *Counter) {
	for _, line := range c.Report() {
		fmt.Fprintln(o.w, line)
	}
}
