// Package probe implements single-shot liveness probes for the control and
// voice channels of a VoIP server.
package probe

import (
	"context"
	"errors"
	"syscall"

	"voipcheck/internal/models"
)

// Reporter receives human-readable progress lines while a probe runs.
// An empty marker denotes an indented detail line.
type Reporter interface {
	Step(marker, format string, args ...any)
}

// Prober runs one bounded attempt against a channel. Implementations never
// return errors; every failure is folded into the result.
type Prober interface {
	Run(ctx context.Context, rep Reporter) models.ProbeResult
}

// Progress markers.
const (
	MarkStart    = "*"
	MarkOK       = "+"
	MarkSent     = ">"
	MarkReceived = "<"
	MarkWarn     = "!"
	MarkFail     = "-"
	MarkDetail   = ""
)

type nopReporter struct{}

func (nopReporter) Step(string, string, ...any) {}

func reporterOrNop(rep Reporter) Reporter {
	if rep == nil {
		return nopReporter{}
	}
	return rep
}

// classify maps a transport error onto refused or failed. Reply timeouts are
// decided by the caller, since a timed out dial is a transport fault.
func classify(err error) models.Outcome {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return models.OutcomeRefused
	}
	return models.OutcomeFailed
}
